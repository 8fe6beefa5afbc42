package cache

import (
	"sync"
	"time"

	"github.com/faircamp-go/faircamp/internal/audiometa"
	"github.com/faircamp-go/faircamp/internal/fingerprint"
	"github.com/faircamp-go/faircamp/internal/format"
)

// TranscodeSet is the cache record for one source audio file: its
// fingerprint, the extracted AudioMeta, and one optional Asset per
// supported streaming format.
type TranscodeSet struct {
	mu sync.RWMutex

	Fingerprint fingerprint.Fingerprint
	Meta        audiometa.Meta
	assets      map[format.Audio]*Asset
}

// transcodeSetGob mirrors TranscodeSet's exported persisted state; the
// mutex and any derived fields are excluded from serialization.
type transcodeSetGob struct {
	Fingerprint fingerprint.Fingerprint
	Meta        audiometa.Meta
	Assets      map[format.Audio]*Asset
}

func newTranscodeSet(fp fingerprint.Fingerprint, meta audiometa.Meta) *TranscodeSet {
	return &TranscodeSet{Fingerprint: fp, Meta: meta, assets: map[format.Audio]*Asset{}}
}

// Get returns the asset for a format, or nil if it hasn't been produced.
func (t *TranscodeSet) Get(f format.Audio) *Asset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.assets[f]
}

// Set registers a produced asset for a format.
func (t *TranscodeSet) Set(f format.Audio, a *Asset) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assets[f] = a
}

// Take removes and returns the asset for a format, if any (used when
// demoting a stale or orphaned reference).
func (t *TranscodeSet) Take(f format.Audio) *Asset {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.assets[f]
	delete(t.assets, f)
	return a
}

// Formats returns every format currently produced, in format.AllAudio order.
func (t *TranscodeSet) Formats() []format.Audio {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]format.Audio, 0, len(t.assets))
	for _, f := range format.AllAudio {
		if _, ok := t.assets[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// MarkAllStale marks every currently produced asset stale.
func (t *TranscodeSet) MarkAllStale(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range t.assets {
		a.MarkStale(at)
	}
}

func (t *TranscodeSet) toGob() transcodeSetGob {
	t.mu.RLock()
	defer t.mu.RUnlock()
	assets := make(map[format.Audio]*Asset, len(t.assets))
	for k, v := range t.assets {
		assets[k] = v
	}
	return transcodeSetGob{Fingerprint: t.Fingerprint, Meta: t.Meta, Assets: assets}
}

func transcodeSetFromGob(g transcodeSetGob) *TranscodeSet {
	assets := g.Assets
	if assets == nil {
		assets = map[format.Audio]*Asset{}
	}
	return &TranscodeSet{Fingerprint: g.Fingerprint, Meta: g.Meta, assets: assets}
}
