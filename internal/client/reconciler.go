package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"time"

	"docchat/internal/api"
	"docchat/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Reconciler keeps server state and client-held files in step. Files the
// server could not store live in the ClientStore and are indexed here.
type Reconciler struct {
	api     *APIClient
	store   ClientStore
	indexer *LocalIndexer
	flight  singleflight.Group
	now     func() time.Time
}

func NewReconciler(apiClient *APIClient, store ClientStore, indexer *LocalIndexer) *Reconciler {
	return &Reconciler{api: apiClient, store: store, indexer: indexer, now: time.Now}
}

type UploadResult struct {
	api.UploadResponse
	// Warning is set when the client could not persist bytes it was handed.
	Warning string
	// IndexErr is the client-side indexing failure, if any.
	IndexErr error
}

// Upload sends the file and, when the server hands it back, keeps it locally
// and indexes it right away.
func (r *Reconciler) Upload(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	resp, err := r.api.Upload(ctx, filename, data)
	if err != nil {
		return UploadResult{}, err
	}
	res := UploadResult{UploadResponse: resp}
	if !resp.UseBrowserStorage {
		return res, nil
	}

	content := data
	if resp.FileContent != "" {
		if content, err = base64.StdEncoding.DecodeString(resp.FileContent); err != nil {
			return res, fmt.Errorf("decode returned content: %w", err)
		}
	}
	stored := StoredFile{FileID: resp.FileID, Filename: resp.Filename, Content: content, UploadedAt: r.now().UTC()}
	if err := saveFile(ctx, r.store, stored); err != nil {
		res.Warning = fmt.Sprintf("file will not survive a restart: %v", err)
		log.Ctx(ctx).Warn().Err(err).Str("file_id", resp.FileID).Msg("Could not persist client file")
	}

	pre, err := r.indexLocal(ctx, stored)
	if pre.Status != "" {
		res.IndexingStatus = pre.Status
	}
	if err != nil {
		res.IndexErr = err
		log.Ctx(ctx).Error().Err(err).Str("file_id", resp.FileID).Msg("Client-side indexing failed")
	}
	return res, nil
}

// Catalog merges the server listing with files only this client holds.
// A server listing failure degrades to the client-held files.
func (r *Reconciler) Catalog(ctx context.Context) ([]models.File, error) {
	held, err := r.heldFiles(ctx)
	if err != nil {
		return nil, err
	}

	serverFiles, err := r.api.Files(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Server listing failed, showing client files only")
	}

	byID := make(map[string]models.File, len(serverFiles)+len(held))
	for _, f := range serverFiles {
		if _, ok := held[f.FileID]; ok {
			f.StorageLocation = models.LocationBoth
		}
		byID[f.FileID] = f
	}
	for id, sf := range held {
		if _, ok := byID[id]; ok {
			continue
		}
		f := models.File{
			FileID:           id,
			OriginalFilename: sf.Filename,
			UploadedAt:       sf.UploadedAt,
			StorageLocation:  models.LocationClient,
			SizeBytes:        int64(len(sf.Content)),
			IndexingStatus:   models.StatusPending,
		}
		if st, err := r.api.Status(ctx, id); err == nil && st.Status != models.StatusUnknown {
			f.IndexingStatus = st.Status
			f.IndexingMessage = st.Message
		}
		byID[id] = f
	}

	files := make([]models.File, 0, len(byID))
	for _, f := range byID {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].UploadedAt.Equal(files[j].UploadedAt) {
			return files[i].UploadedAt.Before(files[j].UploadedAt)
		}
		return files[i].FileID < files[j].FileID
	})
	return files, nil
}

// Reindex asks the server to retry and indexes locally when it does not hold the bytes.
func (r *Reconciler) Reindex(ctx context.Context, fileID string) (models.IndexingStatus, error) {
	resp, err := r.api.Reindex(ctx, fileID)
	if err != nil {
		return models.StatusUnknown, err
	}
	if !resp.UseBrowserStorage {
		return resp.Status, nil
	}
	sf, ok, err := loadFile(ctx, r.store, fileID)
	if err != nil {
		return resp.Status, err
	}
	if !ok {
		return resp.Status, fmt.Errorf("%w: %s is held by neither server nor client", models.ErrNotFound, fileID)
	}
	pre, err := r.indexLocal(ctx, sf)
	if pre.Status != "" {
		return pre.Status, err
	}
	return resp.Status, err
}

// Delete removes the file on both sides. Client-only ids succeed.
func (r *Reconciler) Delete(ctx context.Context, fileID string) error {
	var errs []error
	if err := r.api.Delete(ctx, fileID); err != nil {
		errs = append(errs, fmt.Errorf("server delete: %w", err))
	}
	if err := r.store.Delete(ctx, fileID); err != nil {
		errs = append(errs, fmt.Errorf("client delete: %w", err))
	}
	return errors.Join(errs...)
}

type Report struct {
	Checked int
	Indexed int
	Failed  int
}

// ReconcileOnce re-drives every client-held file the server has not finished.
// Failed files wait for an explicit Reindex.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (Report, error) {
	held, err := r.heldFiles(ctx)
	if err != nil {
		return Report{}, err
	}

	type outcome struct{ indexed, failed bool }
	results := make(chan outcome, len(held))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, sf := range held {
		g.Go(func() error {
			st, err := r.api.Status(gctx, sf.FileID)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("file_id", sf.FileID).Msg("Status lookup failed")
				results <- outcome{failed: true}
				return nil
			}
			if st.Status != models.StatusPending && st.Status != models.StatusUnknown {
				results <- outcome{}
				return nil
			}
			if _, err := r.indexLocal(gctx, sf); err != nil {
				log.Ctx(ctx).Error().Err(err).Str("file_id", sf.FileID).Msg("Reconcile indexing failed")
				results <- outcome{failed: true}
				return nil
			}
			results <- outcome{indexed: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	close(results)

	rep := Report{Checked: len(held)}
	for o := range results {
		if o.indexed {
			rep.Indexed++
		}
		if o.failed {
			rep.Failed++
		}
	}
	return rep, ctx.Err()
}

// Run reconciles immediately and then every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		rep, err := r.ReconcileOnce(ctx)
		if err != nil && ctx.Err() == nil {
			log.Ctx(ctx).Error().Err(err).Msg("Reconcile pass failed")
		} else if rep.Indexed > 0 || rep.Failed > 0 {
			log.Ctx(ctx).Info().Int("checked", rep.Checked).Int("indexed", rep.Indexed).Int("failed", rep.Failed).Msg("Reconcile pass")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// indexLocal collapses concurrent runs for the same file into one.
func (r *Reconciler) indexLocal(ctx context.Context, sf StoredFile) (api.PreIndexedResponse, error) {
	v, err, _ := r.flight.Do(sf.FileID, func() (any, error) {
		return r.indexer.Index(ctx, sf.FileID, sf.Filename, sf.Content)
	})
	pre, _ := v.(api.PreIndexedResponse)
	return pre, err
}

func (r *Reconciler) heldFiles(ctx context.Context) (map[string]StoredFile, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list client files: %w", err)
	}
	held := make(map[string]StoredFile, len(keys))
	for _, k := range keys {
		sf, ok, err := loadFile(ctx, r.store, k)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("key", k).Msg("Skipping unreadable client file")
			continue
		}
		if ok {
			held[sf.FileID] = sf
		}
	}
	return held, nil
}
