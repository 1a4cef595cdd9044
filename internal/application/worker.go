package application

import (
	"context"
	"fmt"

	"github.com/ahrav/go-lessonforge/internal/ports"
)

// Worker is one pool slot. It owns a store connection and one model client
// per role, all created on first use and never shared with other workers.
// A Worker is used by one goroutine at a time.
type Worker struct {
	ID int

	models ports.ModelProvider
	stores ports.StoreFactory

	store      ports.ExerciseStore
	generation ports.LLMClient
	validation ports.LLMClient
}

// NewWorker creates an idle worker.
func NewWorker(id int, models ports.ModelProvider, stores ports.StoreFactory) *Worker {
	return &Worker{ID: id, models: models, stores: stores}
}

// Store returns the worker's own store connection.
func (w *Worker) Store(ctx context.Context) (ports.ExerciseStore, error) {
	if w.store != nil {
		return w.store, nil
	}
	s, err := w.stores(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("worker %d: open store: %w", w.ID, err)
	}
	w.store = s
	return s, nil
}

// Generation returns the worker's generation model client.
func (w *Worker) Generation() (ports.LLMClient, error) {
	if w.generation == nil {
		c, err := w.models.ForWorker(w.ID, ports.RoleGeneration)
		if err != nil {
			return nil, err
		}
		w.generation = c
	}
	return w.generation, nil
}

// Validation returns the worker's validation model client.
func (w *Worker) Validation() (ports.LLMClient, error) {
	if w.validation == nil {
		c, err := w.models.ForWorker(w.ID, ports.RoleValidation)
		if err != nil {
			return nil, err
		}
		w.validation = c
	}
	return w.validation, nil
}

// Close releases the store connection if one was opened.
func (w *Worker) Close() error {
	if w.store == nil {
		return nil
	}
	err := w.store.Close()
	w.store = nil
	return err
}
