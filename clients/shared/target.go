package shared

import (
	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/destination"
	"github.com/artie-labs/medallion/lib/settings"
	"github.com/artie-labs/medallion/lib/sql"
)

// Target is a resolved target table together with its merge options.
type Target struct {
	TableID sql.TableIdentifier
	// DatabaseLocation is where the namespace of the table is stored.
	DatabaseLocation string
	// Path is the storage path of the table, other pipelines read it through the catalog.
	Path          string
	PrimaryKeys   []string
	SequenceBy    []string
	PartitionBy   []string
	ApplyAsDelete string
	Mode          constants.WriteMode
}

func NewTarget(dest destination.Destination, spec settings.TargetSpec) Target {
	return Target{
		TableID:          dest.IdentifierFor(spec.DatabaseName, spec.TableName),
		DatabaseLocation: spec.DatabasePath,
		Path:             spec.Path,
		PrimaryKeys:      spec.Options.PrimaryKey,
		SequenceBy:       spec.Options.SequenceBy,
		PartitionBy:      spec.Options.PartitionBy,
		ApplyAsDelete:    spec.Options.ApplyAsDelete,
		Mode:             spec.Options.Mode,
	}
}

func (t Target) Name() string {
	return t.TableID.Database() + "." + t.TableID.Table()
}

func (t Target) SoftDelete() bool {
	return t.ApplyAsDelete != ""
}
