package kafkalib

import "sync"

// HighWaterMark tracks, per topic and partition, the broker high watermark and the next offset to consume.
type HighWaterMark struct {
	sync.RWMutex
	topicToPartitionHWM  map[string]map[int32]int64
	topicToPartitionNext map[string]map[int32]int64
}

func NewHighWaterMark() *HighWaterMark {
	return &HighWaterMark{
		topicToPartitionHWM:  map[string]map[int32]int64{},
		topicToPartitionNext: map[string]map[int32]int64{},
	}
}

func set(m map[string]map[int32]int64, topic string, partition int32, value int64) {
	if _, ok := m[topic]; !ok {
		m[topic] = map[int32]int64{}
	}
	m[topic][partition] = value
}

func (h *HighWaterMark) SetHWM(topic string, partition int32, hwm int64) {
	h.Lock()
	defer h.Unlock()
	set(h.topicToPartitionHWM, topic, partition, hwm)
}

// Advance records that every offset below [next] was consumed.
func (h *HighWaterMark) Advance(topic string, partition int32, next int64) {
	h.Lock()
	defer h.Unlock()
	if current, ok := h.topicToPartitionNext[topic][partition]; ok && current >= next {
		return
	}
	set(h.topicToPartitionNext, topic, partition, next)
}

// Lag returns the number of records between the consumed position and the high watermark of each partition.
func (h *HighWaterMark) Lag() map[string]map[int32]int64 {
	h.RLock()
	defer h.RUnlock()
	lag := make(map[string]map[int32]int64, len(h.topicToPartitionHWM))
	for topic, partitions := range h.topicToPartitionHWM {
		for partition, hwm := range partitions {
			next, ok := h.topicToPartitionNext[topic][partition]
			if !ok {
				continue
			}
			set(lag, topic, partition, max(hwm-next, 0))
		}
	}
	return lag
}

// CaughtUp returns true once every partition with a known high watermark was consumed up to it.
func (h *HighWaterMark) CaughtUp() bool {
	h.RLock()
	defer h.RUnlock()
	if len(h.topicToPartitionHWM) == 0 {
		return false
	}

	for topic, partitions := range h.topicToPartitionHWM {
		for partition, hwm := range partitions {
			if next := h.topicToPartitionNext[topic][partition]; next < hwm {
				return false
			}
		}
	}
	return true
}
