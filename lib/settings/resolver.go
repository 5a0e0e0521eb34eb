package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/artie-labs/medallion/lib/config/constants"
)

// DetectStage infers the stage of a document from the steps it declares.
func DetectStage(doc map[string]any) (constants.StageKind, error) {
	_, hasGold := doc[constants.StepSilverToGold]
	_, hasBronze := doc[constants.StepRawToBronze]
	_, hasSilver := doc[constants.StepBronzeToSilver]

	switch {
	case hasGold && !hasBronze && !hasSilver:
		return constants.StageGold, nil
	case hasBronze || hasSilver:
		return constants.StageSilver, nil
	default:
		return "", ValidationError{Fields: []FieldError{{Path: "(root)", Message: "declares no steps"}}}
	}
}

// Resolve turns a raw settings document into a validated, fully defaulted [PipelineConfig].
// If [stage] is [constants.StageAuto], it is detected from the document.
func Resolve(raw []byte, stage constants.StageKind) (*PipelineConfig, error) {
	if _, err := Parse(raw); err != nil {
		return nil, err
	}

	rendered, err := Render(raw)
	if err != nil {
		return nil, err
	}

	doc, err := parse("rendered", rendered)
	if err != nil {
		return nil, err
	}

	if stage == constants.StageAuto {
		if stage, err = DetectStage(doc); err != nil {
			return nil, err
		}
	}

	if err = Validate(doc, stage); err != nil {
		return nil, err
	}

	defaults, err := Defaults(doc, stage)
	if err != nil {
		return nil, err
	}

	reconciled := Reconcile(defaults, doc)
	if err = Validate(reconciled, stage); err != nil {
		return nil, err
	}

	cfg, err := decode(reconciled)
	if err != nil {
		return nil, err
	}

	cfg.Stage = stage
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func ResolveFile(path string, stage constants.StageKind) (*PipelineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings document: %w", err)
	}

	cfg, err := Resolve(raw, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	return cfg, nil
}

func decode(doc map[string]any) (*PipelineConfig, error) {
	bytes, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}

	var cfg PipelineConfig
	if err = yaml.Unmarshal(bytes, &cfg); err != nil {
		return nil, MalformedDocumentError{Stage: "resolved", err: err}
	}

	for name, step := range map[string]*StepConfig{
		constants.StepRawToBronze:    cfg.StepRawToBronze,
		constants.StepBronzeToSilver: cfg.StepBronzeToSilver,
		constants.StepSilverToGold:   cfg.StepSilverToGold,
	} {
		if step != nil {
			step.Name = name
		}
	}

	return &cfg, nil
}
