package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/jrife/vault/storage/backend"
	"go.uber.org/zap"
)

// load returns a copy of the current record set. Buffered writes
// shadow the backend. A record set that cannot be decoded is removed
// and treated as empty.
func (engine *Engine) load() RecordSet {
	if engine.dirty != nil {
		return engine.dirty.clone()
	}

	text, ok, err := engine.backend.Read(engine.config.Key)

	if err != nil {
		engine.logger.Warn("could not read record set", zap.Error(err))

		return RecordSet{}
	}

	if !ok {
		return RecordSet{}
	}

	records, err := engine.decode(text)

	if err != nil {
		engine.logger.Warn("discarding record set", zap.Error(err))

		if err := engine.backend.Remove(engine.config.Key); err != nil {
			engine.logger.Warn("could not remove corrupted record set", zap.Error(err))
		}

		return RecordSet{}
	}

	return records
}

func (engine *Engine) decode(text string) (RecordSet, error) {
	plain, err := engine.pipeline.Reverse(text)

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupted, err)
	}

	records, dropped, err := decodeRecordSet(plain)

	if err != nil {
		return nil, err
	}

	if len(dropped) > 0 {
		engine.logger.Warn("dropped records stored under reserved keys", zap.Strings("keys", dropped))
	}

	return records, nil
}

// save persists records now or, when writes are debounced,
// buffers them and reschedules the write
func (engine *Engine) save(records RecordSet) error {
	if engine.config.Debounce <= 0 {
		return engine.persist(records)
	}

	engine.dirty = records
	engine.schedule()

	return nil
}

// commit persists records now, replacing any buffered writes. The
// buffer is kept if the write fails.
func (engine *Engine) commit(records RecordSet) error {
	engine.cancelTimer()

	if err := engine.persist(records); err != nil {
		if engine.dirty != nil {
			engine.dirty = records
		}

		return err
	}

	engine.dirty = nil

	return nil
}

// Flush writes buffered changes now
func (engine *Engine) Flush() error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	return engine.flush()
}

func (engine *Engine) flush() error {
	engine.cancelTimer()

	if engine.dirty == nil {
		return nil
	}

	if err := engine.persist(engine.dirty); err != nil {
		return err
	}

	engine.dirty = nil

	return nil
}

func (engine *Engine) schedule() {
	engine.cancelTimer()
	generation := engine.generation

	engine.timer = engine.clock.AfterFunc(engine.config.Debounce, func() {
		engine.mu.Lock()
		defer engine.mu.Unlock()

		if generation != engine.generation {
			return
		}

		engine.timer = nil

		if engine.dirty == nil {
			return
		}

		if err := engine.persist(engine.dirty); err != nil {
			engine.logger.Warn("debounced write failed, keeping buffered changes", zap.Error(err))

			return
		}

		engine.dirty = nil
	})
}

func (engine *Engine) cancelTimer() {
	engine.generation++

	if engine.timer != nil {
		engine.timer.Stop()
		engine.timer = nil
	}
}

// persist is the only path that writes the record set to the backend
func (engine *Engine) persist(records RecordSet) error {
	if engine.backend.Kind() == backend.Ephemeral {
		engine.evict(records)
	}

	text, err := engine.encode(records)

	if err != nil {
		return err
	}

	err = engine.backend.Write(engine.config.Key, text)

	if errors.Is(err, backend.ErrQuotaExceeded) {
		return engine.recoverQuota(records)
	}

	return wrapError("could not write record set", err)
}

// recoverQuota drops expired records and retries the write once.
// A quota error during the retry is returned as is.
func (engine *Engine) recoverQuota(records RecordSet) error {
	if engine.cleaningUp {
		return fmt.Errorf("%w: %d items remain after removing expired items", ErrQuotaExceeded, len(records))
	}

	engine.cleaningUp = true
	defer func() { engine.cleaningUp = false }()

	removed := records.removeExpired(engine.now())
	engine.logger.Warn("storage quota exceeded, retrying without expired items", zap.Int("removed", removed))

	return engine.persist(records)
}

func (engine *Engine) encode(records RecordSet) (string, error) {
	encoded, err := json.Marshal(records)

	if err != nil {
		return "", encodeError(err)
	}

	if len(encoded) > engine.config.MaxSizeBytes {
		engine.logger.Warn("record set exceeds its size limit", zap.Int("size", len(encoded)), zap.Int("limit", engine.config.MaxSizeBytes))
	}

	text, err := engine.pipeline.Apply(string(encoded))

	if err != nil {
		return "", err
	}

	return text, nil
}

type evictionCandidate struct {
	key    string
	expiry *int64
}

// byExpiry orders candidates soonest expiry first. Records that never
// expire come last. Ties are broken by key.
func byExpiry(a, b interface{}) int {
	x, y := a.(evictionCandidate), b.(evictionCandidate)

	switch {
	case x.expiry == nil && y.expiry != nil:
		return 1
	case x.expiry != nil && y.expiry == nil:
		return -1
	case x.expiry != nil && *x.expiry != *y.expiry:
		if *x.expiry < *y.expiry {
			return -1
		}

		return 1
	}

	return strings.Compare(x.key, y.key)
}

// evict trims records to MaxItemsInMemory
func (engine *Engine) evict(records RecordSet) {
	excess := len(records) - engine.config.MaxItemsInMemory

	if excess <= 0 {
		return
	}

	heap := binaryheap.NewWith(byExpiry)

	for key, record := range records {
		heap.Push(evictionCandidate{key: key, expiry: record.Expiry})
	}

	evicted := make([]string, 0, excess)

	for len(evicted) < excess {
		value, ok := heap.Pop()

		if !ok {
			break
		}

		candidate := value.(evictionCandidate)
		delete(records, candidate.key)
		evicted = append(evicted, candidate.key)
	}

	engine.logger.Debug("evicted items over the in-memory limit", zap.Strings("keys", evicted))
}
