package detector

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// bundle is the single serialized artifact holding every fitted scaler,
// model and metric. Only this package's Save/Load pair needs to agree
// on the format.
type bundle struct {
	Scalers  map[string]*StandardScaler
	Forest   *IsolationForest
	SVM      *OneClassSVM
	Envelope *EllipticEnvelope
	Cluster  *DensityCluster
	Metrics  map[string]domain.ModelMetrics
	Live     map[string]bool
	SavedAt  time.Time
}

// Save serializes the full ensemble state to the given path. The file
// handle is released on every exit path.
func (e *Ensemble) Save(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := bundle{
		Scalers: e.scalers,
		Metrics: e.metrics,
		Live:    e.live,
		SavedAt: time.Now().UTC(),
	}
	for _, m := range e.models {
		switch v := m.(type) {
		case *IsolationForest:
			b.Forest = v
		case *OneClassSVM:
			b.SVM = v
		case *EllipticEnvelope:
			b.Envelope = v
		case *DensityCluster:
			b.Cluster = v
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("detector: create bundle: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(&b); err != nil {
		return fmt.Errorf("detector: encode bundle: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("detector: close bundle: %w", err)
	}

	slog.Info("model bundle saved", "path", path)
	return nil
}

// Load restores a previously saved bundle. A missing path is a no-op
// with a warning, not a fatal error: the caller simply has no prior
// model. A corrupt bundle is treated the same way.
func (e *Ensemble) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("model bundle not found, starting without prior models", "path", path)
			return nil
		}
		return fmt.Errorf("detector: open bundle: %w", err)
	}
	defer f.Close()

	var b bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		slog.Warn("model bundle unreadable, starting without prior models", "path", path, "error", err)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.scalers = b.Scalers
	e.metrics = b.Metrics
	e.live = b.Live
	if e.scalers == nil {
		e.scalers = make(map[string]*StandardScaler)
	}
	if e.metrics == nil {
		e.metrics = make(map[string]domain.ModelMetrics)
	}
	if e.live == nil {
		e.live = make(map[string]bool)
	}

	e.models = e.models[:0]
	if b.Forest != nil {
		b.Forest.markTrained()
		e.models = append(e.models, b.Forest)
	}
	if b.SVM != nil {
		b.SVM.markTrained()
		e.models = append(e.models, b.SVM)
	}
	if b.Envelope != nil {
		b.Envelope.markTrained()
		e.models = append(e.models, b.Envelope)
	}
	if b.Cluster != nil {
		b.Cluster.markTrained()
		e.models = append(e.models, b.Cluster)
	}

	slog.Info("model bundle loaded", "path", path, "saved_at", b.SavedAt, "models", len(e.models))
	return nil
}
