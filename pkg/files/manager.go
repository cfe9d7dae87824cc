package files

import (
	"context"
	"encoding/base64"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/storage"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// RegistryKey is the local-tier key holding the file registry.
const RegistryKey = "fileRegistry"

// IDPrefix starts every file ID.
const IDPrefix = "file_"

var errMalformedDataURL = errors.New("malformed data URL")

// Registry maps file ID to its record.
type Registry map[string]types.FileRecord

// Manager stores, retrieves and deletes files in a local tier.
type Manager struct {
	tier      storage.Tier
	limits    config.StorageConfig
	allowed   *config.TypeMatcher
	inspector Inspector
	log       *logging.Logger
	now       func() time.Time
	onPrune   func(ctx context.Context, pruned []types.FileRecord)

	// mu serializes registry read-modify-write cycles within the process.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for compensation and pruning messages.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithInspector replaces the content inspector.
func WithInspector(i Inspector) Option {
	return func(m *Manager) { m.inspector = i }
}

// WithPruneHandler registers fn to be called with the records dropped from
// the registry because their payload was missing. It runs with the registry
// lock held and must not call back into the Manager.
func WithPruneHandler(fn func(ctx context.Context, pruned []types.FileRecord)) Option {
	return func(m *Manager) { m.onPrune = fn }
}

// WithClock sets the time source used for IDs and timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over tier. PDF inspection is enabled when
// limits.InspectPDF is set, unless WithInspector overrides it.
func NewManager(tier storage.Tier, limits config.StorageConfig, opts ...Option) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, types.Validation("files.new", "%v", err)
	}
	allowed, err := limits.TypeMatcher()
	if err != nil {
		return nil, types.Validation("files.new", "%v", err)
	}

	m := &Manager{
		tier:    tier,
		limits:  limits,
		allowed: allowed,
		now:     time.Now,
	}
	if limits.InspectPDF {
		m.inspector = NewPDFInspector()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Initialize makes sure the registry exists and removes payloads that no
// registry entry refers to. It is safe to call more than once.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok, err := storage.GetJSON[Registry](ctx, m.tier, RegistryKey)
	if err != nil {
		return types.StorageUnavailable("files.initialize", err, "failed to read file registry")
	}
	if !ok {
		if err := m.tier.Set(ctx, map[string]any{RegistryKey: Registry{}}); err != nil {
			return types.StorageUnavailable("files.initialize", err, "failed to create file registry")
		}
		reg = Registry{}
	}

	keys, err := m.tier.Keys(ctx)
	if err != nil {
		return types.StorageUnavailable("files.initialize", err, "failed to list local keys")
	}
	orphans := lo.Filter(keys, func(key string, _ int) bool {
		_, known := reg[key]
		return strings.HasPrefix(key, IDPrefix) && !known
	})
	if len(orphans) > 0 {
		m.log.Warnf("removing %d orphaned payloads: %v", len(orphans), orphans)
		if err := m.tier.Remove(ctx, orphans...); err != nil {
			return types.StorageUnavailable("files.initialize", err, "failed to remove orphaned payloads")
		}
	}
	return nil
}

// Validate checks an upload against the allow-list, the size ceiling and the
// content inspector without touching storage.
func (m *Manager) Validate(upload types.Upload) error {
	const op = "files.validate"
	if strings.TrimSpace(upload.Name) == "" {
		return types.Validation(op, "file name is required")
	}
	if !m.allowed.Allowed(upload.MIMEType) {
		return types.Validation(op, "%s: file type %q is not allowed", upload.Name, upload.MIMEType)
	}
	if upload.Size() > m.limits.MaxFileSize {
		return types.Validation(op, "%s: file is %d bytes, limit is %d", upload.Name, upload.Size(), m.limits.MaxFileSize)
	}
	if m.inspector != nil {
		if err := m.inspector.Inspect(upload.MIMEType, upload.Content); err != nil {
			return types.Validation(op, "%s: %v", upload.Name, err)
		}
	}
	return nil
}

// StoreFile validates upload and stores it for profile. A validation failure
// leaves both the registry and the payloads untouched.
func (m *Manager) StoreFile(ctx context.Context, upload types.Upload, profile string) (types.FileRecord, error) {
	const op = "files.store"
	if profile == "" {
		return types.FileRecord{}, types.Validation(op, "profile is required")
	}
	if err := m.Validate(upload); err != nil {
		return types.FileRecord{}, err
	}

	now := m.now()
	record := types.FileRecord{
		ID:        NewID(now),
		Name:      upload.Name,
		MIMEType:  baseType(upload.MIMEType),
		SizeBytes: upload.Size(),
		Profile:   profile,
		CreatedAt: now.UTC().Truncate(time.Millisecond),
	}
	data := DataURL(record.MIMEType, upload.Content)

	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.loadRegistry(ctx, op)
	if err != nil {
		return types.FileRecord{}, err
	}
	next := make(Registry, len(reg)+1)
	for id, rec := range reg {
		next[id] = rec
	}
	next[record.ID] = record

	if err := m.preflight(ctx, op, record.ID, data, next); err != nil {
		return types.FileRecord{}, err
	}

	if err := m.tier.Set(ctx, map[string]any{record.ID: data}); err != nil {
		return types.FileRecord{}, types.StorageUnavailable(op, err, "failed to write %s", upload.Name)
	}
	if err := m.tier.Set(ctx, map[string]any{RegistryKey: next}); err != nil {
		if rmErr := m.tier.Remove(context.WithoutCancel(ctx), record.ID); rmErr != nil {
			m.log.Errorf("failed to remove payload %s after registry write failed: %v", record.ID, rmErr)
		} else {
			m.log.Warnf("registry write failed, removed payload %s", record.ID)
		}
		return types.FileRecord{}, types.StorageUnavailable(op, err, "failed to register %s", upload.Name)
	}

	m.log.Infof("stored %s (%s, %d bytes) for profile %q", record.ID, record.MIMEType, record.SizeBytes, profile)
	return record, nil
}

// preflight rejects a write that would exceed the aggregate ceiling before
// anything is written.
func (m *Manager) preflight(ctx context.Context, op, id, data string, next Registry) error {
	blobSize, err := storage.ItemSize(id, data)
	if err != nil {
		return types.StorageUnavailable(op, err, "failed to measure payload")
	}
	oldRegSize, err := m.tier.BytesInUse(ctx, RegistryKey)
	if err != nil {
		return types.StorageUnavailable(op, err, "failed to measure registry")
	}
	newRegSize, err := storage.ItemSize(RegistryKey, next)
	if err != nil {
		return types.StorageUnavailable(op, err, "failed to measure registry")
	}
	used, err := m.tier.BytesInUse(ctx)
	if err != nil {
		return types.StorageUnavailable(op, err, "failed to measure local storage")
	}

	after := used + blobSize + newRegSize - oldRegSize
	if after > m.limits.MaxTotalSize {
		return types.StorageUnavailable(op, storage.ErrQuotaExceeded,
			"local storage would grow to %d bytes, limit is %d", after, m.limits.MaxTotalSize)
	}
	return nil
}

// GetFile returns the record for id joined with its payload.
func (m *Manager) GetFile(ctx context.Context, id string) (types.StoredFile, error) {
	const op = "files.get"
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.loadRegistry(ctx, op)
	if err != nil {
		return types.StoredFile{}, err
	}
	record, ok := reg[id]
	if !ok {
		return types.StoredFile{}, types.NotFound(op, "file %q not found", id)
	}

	data, ok, err := storage.GetJSON[string](ctx, m.tier, id)
	if err != nil {
		return types.StoredFile{}, types.StorageUnavailable(op, err, "failed to read payload %s", id)
	}
	if !ok {
		m.prune(ctx, reg, []string{id})
		return types.StoredFile{}, types.NotFound(op, "file %q not found", id)
	}
	return types.StoredFile{FileRecord: record, Data: data}, nil
}

// Content decodes the payload of a stored file.
func (m *Manager) Content(ctx context.Context, id string) (types.FileRecord, []byte, error) {
	file, err := m.GetFile(ctx, id)
	if err != nil {
		return types.FileRecord{}, nil, err
	}
	content, err := DecodeDataURL(file.Data)
	if err != nil {
		return types.FileRecord{}, nil, types.StorageUnavailable("files.content", err, "corrupt payload %s", id)
	}
	return file.FileRecord, content, nil
}

// DeleteFile removes the registry entry and the payload for id. Either half
// may already be missing. It reports whether anything was removed.
func (m *Manager) DeleteFile(ctx context.Context, id string) (bool, error) {
	const op = "files.delete"
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteLocked(ctx, op, []string{id})
}

// DeleteProfileFiles removes every file that belongs to profile and returns
// the number of registry entries removed.
func (m *Manager) DeleteProfileFiles(ctx context.Context, profile string) (int, error) {
	const op = "files.delete_profile"
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.loadRegistry(ctx, op)
	if err != nil {
		return 0, err
	}
	ids := lo.FilterMap(lo.Values(map[string]types.FileRecord(reg)), func(rec types.FileRecord, _ int) (string, bool) {
		return rec.ID, rec.Profile == profile
	})
	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := m.deleteLocked(ctx, op, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (m *Manager) deleteLocked(ctx context.Context, op string, ids []string) (bool, error) {
	reg, err := m.loadRegistry(ctx, op)
	if err != nil {
		return false, err
	}

	removed := false
	next := make(Registry, len(reg))
	for id, rec := range reg {
		if lo.Contains(ids, id) {
			removed = true
			continue
		}
		next[id] = rec
	}
	if removed {
		if err := m.tier.Set(ctx, map[string]any{RegistryKey: next}); err != nil {
			return false, types.StorageUnavailable(op, err, "failed to update file registry")
		}
	}

	inUse, err := m.tier.BytesInUse(ctx, ids...)
	if err != nil {
		return removed, types.StorageUnavailable(op, err, "failed to inspect payloads")
	}
	if err := m.tier.Remove(ctx, ids...); err != nil {
		return removed, types.StorageUnavailable(op, err, "failed to remove payloads")
	}
	if removed || inUse > 0 {
		m.log.Infof("deleted files %v", ids)
	}
	return removed || inUse > 0, nil
}

// ListFiles returns the records that belong to profile, oldest first. Entries
// whose payload is missing are pruned from the registry.
func (m *Manager) ListFiles(ctx context.Context, profile string) ([]types.FileRecord, error) {
	const op = "files.list"
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.loadRegistry(ctx, op)
	if err != nil {
		return nil, err
	}
	keys, err := m.tier.Keys(ctx)
	if err != nil {
		return nil, types.StorageUnavailable(op, err, "failed to list local keys")
	}
	present := lo.SliceToMap(keys, func(k string) (string, struct{}) { return k, struct{}{} })

	var missing []string
	records := []types.FileRecord{}
	for id, rec := range reg {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
			continue
		}
		if rec.Profile == profile {
			records = append(records, rec)
		}
	}
	if len(missing) > 0 {
		m.prune(ctx, reg, missing)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Owners returns the sorted names of the profiles that own at least one file.
func (m *Manager) Owners(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.loadRegistry(ctx, "files.owners")
	if err != nil {
		return nil, err
	}
	owners := lo.Uniq(lo.MapToSlice(map[string]types.FileRecord(reg), func(_ string, rec types.FileRecord) string {
		return rec.Profile
	}))
	sort.Strings(owners)
	return owners, nil
}

// Usage returns the bytes used by the local tier and its ceiling.
func (m *Manager) Usage(ctx context.Context) (used, limit int64, err error) {
	used, err = m.tier.BytesInUse(ctx)
	if err != nil {
		return 0, 0, types.StorageUnavailable("files.usage", err, "failed to measure local storage")
	}
	return used, m.limits.MaxTotalSize, nil
}

// prune drops registry entries that point at missing payloads. Failure is
// logged only; the entries are pruned again on the next listing.
func (m *Manager) prune(ctx context.Context, reg Registry, ids []string) {
	next := lo.OmitByKeys(map[string]types.FileRecord(reg), ids)
	if err := m.tier.Set(ctx, map[string]any{RegistryKey: Registry(next)}); err != nil {
		m.log.Warnf("failed to prune registry entries %v: %v", ids, err)
		return
	}
	m.log.Warnf("pruned registry entries with missing payloads: %v", ids)
	if m.onPrune != nil {
		m.onPrune(ctx, lo.Values(lo.PickByKeys(map[string]types.FileRecord(reg), ids)))
	}
}

func (m *Manager) loadRegistry(ctx context.Context, op string) (Registry, error) {
	reg, ok, err := storage.GetJSON[Registry](ctx, m.tier, RegistryKey)
	if err != nil {
		return nil, types.StorageUnavailable(op, err, "failed to read file registry")
	}
	if !ok || reg == nil {
		return Registry{}, nil
	}
	return reg, nil
}

// NewID returns a file ID of the form file_<unix-ms>_<random>.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return IDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix
}

// DataURL encodes content as a base64 data URL.
func DataURL(mimeType string, content []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content)
}

// DecodeDataURL returns the bytes of a base64 data URL.
func DecodeDataURL(dataURL string) ([]byte, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, errMalformedDataURL
	}
	return base64.StdEncoding.DecodeString(payload)
}

func baseType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
