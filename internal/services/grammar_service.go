package services

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/vytor/bunpo/internal/defaults"
	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/flashcard"
	"github.com/vytor/bunpo/internal/jobs"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/repository"
	"github.com/vytor/bunpo/internal/textmatch"
)

// GrammarService owns the grammar collection together with answer
// statistics, learning status and the daily goal. Every mutation is written
// to the local cache first; the remote copy is updated in the background.
type GrammarService interface {
	Load(ctx context.Context, force bool) (*models.Snapshot, error)
	Snapshot(ctx context.Context) (*models.Snapshot, error)

	List(ctx context.Context, filter models.GrammarFilter) ([]models.GrammarEntry, error)
	Get(ctx context.Context, id string) (*models.GrammarEntry, error)
	Detail(ctx context.Context, id string) (*EntryDetail, error)
	Levels(ctx context.Context) ([]string, error)
	Create(ctx context.Context, in models.GrammarInput) (*models.GrammarEntry, error)
	Update(ctx context.Context, id string, patch models.GrammarPatch) (*models.GrammarEntry, error)
	Delete(ctx context.Context, id string) error

	PlanImport(ctx context.Context, entries []models.GrammarEntry) (*models.ImportPlan, error)
	ImportPlan(ctx context.Context, token string) (*models.ImportPlan, error)
	ApplyImport(ctx context.Context, token string, decisions map[int]models.ImportDecision) (*models.ImportResult, error)
	ReplaceAll(ctx context.Context, entries []models.GrammarEntry) (*models.ImportResult, error)
	ExportAll(ctx context.Context) ([]byte, error)
	ClearAll(ctx context.Context) error

	RecordAnswer(ctx context.Context, id string, correct bool) (*flashcard.Outcome, error)
	RecordPairAttempt(ctx context.Context, id string, correct bool) (*flashcard.Outcome, error)
	SetStatus(ctx context.Context, id string, status models.Status) error
	CompleteLearning(ctx context.Context, learnedIDs, practicedIDs []string) (models.DailyGoal, error)
	SetDailyGoal(ctx context.Context, goal int) (models.DailyGoal, error)
	RolloverDailyGoal(ctx context.Context) (bool, error)
	Progress(ctx context.Context) (*models.ProgressSummary, error)
	LearnedToday(ctx context.Context) ([]models.GrammarEntry, error)

	Reconcile(ctx context.Context) error
	OnEntryUpdated(fn func(ctx context.Context, entry models.GrammarEntry))
}

// GrammarOptions configures a GrammarService.
type GrammarOptions struct {
	DefaultGoal int
	Now         func() time.Time
	PlanTTL     time.Duration
}

const defaultPlanTTL = 30 * time.Minute

type pendingPlan struct {
	plan    models.ImportPlan
	created time.Time
}

type grammarService struct {
	local  repository.LocalStore
	remote remote.Store
	queue  jobs.SyncQueue
	opts   GrammarOptions

	mu      sync.Mutex
	loaded  bool
	synced  bool
	dirty   bool
	entries []models.GrammarEntry
	stats   models.Stats
	status  models.StatusMap
	goal    models.DailyGoal
	plans   map[string]*pendingPlan
	hooks   []func(context.Context, models.GrammarEntry)
}

// NewGrammarService creates a GrammarService. The store is read on first use.
func NewGrammarService(local repository.LocalStore, store remote.Store, queue jobs.SyncQueue, opts GrammarOptions) GrammarService {
	if opts.DefaultGoal <= 0 {
		opts.DefaultGoal = models.DefaultGoal
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PlanTTL <= 0 {
		opts.PlanTTL = defaultPlanTTL
	}
	if store == nil {
		store = remote.Disabled{}
	}
	return &grammarService{
		local:  local,
		remote: store,
		queue:  queue,
		opts:   opts,
		plans:  map[string]*pendingPlan{},
	}
}

func (s *grammarService) OnEntryUpdated(fn func(ctx context.Context, entry models.GrammarEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Load reads the data set, preferring the remote copy. A remote failure of
// any kind falls back to the local cache as a whole, and an empty cache
// falls back to the bundled entries. The result is kept until force is set.
// A forced load first pushes changes made while the remote was unreachable;
// if that fails the current data set is kept.
func (s *grammarService) Load(ctx context.Context, force bool) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if force && s.loaded && s.dirty {
		if _, err := s.pushLocked(ctx); err != nil {
			logger.FromContext(ctx).WithPrefix("grammar").Warn("keeping unsynced local changes: %v", err)
			return s.snapshotLocked(), nil
		}
	}
	if err := s.loadLocked(ctx, force); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

func (s *grammarService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	return s.Load(ctx, false)
}

type localData struct {
	entries    []models.GrammarEntry
	hasEntries bool
	stats      models.Stats
	status     models.StatusMap
	goal       *models.DailyGoal
}

func (s *grammarService) readLocal(ctx context.Context) localData {
	log := logger.FromContext(ctx).WithPrefix("grammar")
	var d localData

	var entries []models.GrammarEntry
	if ok, err := repository.GetJSON(ctx, s.local, repository.KeyGrammar, &entries); err != nil {
		log.Warn("ignoring unreadable local grammar: %v", err)
	} else if ok && entries != nil {
		d.entries, d.hasEntries = entries, true
	}
	if _, err := repository.GetJSON(ctx, s.local, repository.KeyStats, &d.stats); err != nil {
		log.Warn("ignoring unreadable local stats: %v", err)
	}
	if _, err := repository.GetJSON(ctx, s.local, repository.KeyLearningStatus, &d.status); err != nil {
		log.Warn("ignoring unreadable local learning status: %v", err)
	}
	var goal models.DailyGoal
	if ok, err := repository.GetJSON(ctx, s.local, repository.KeyDailyGoal, &goal); err != nil {
		log.Warn("ignoring unreadable local daily goal: %v", err)
	} else if ok {
		d.goal = &goal
	}
	return d
}

type remoteData struct {
	docs                         []remote.Doc
	stats, status, goal          []byte
	hasStats, hasStatus, hasGoal bool
}

func (s *grammarService) readRemote(ctx context.Context) (*remoteData, error) {
	var d remoteData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.remote.List(gctx, remote.CollectionGrammar)
		d.docs = docs
		return err
	})
	single := func(collection, id string, dst *[]byte, found *bool) {
		g.Go(func() error {
			data, err := s.remote.Get(gctx, collection, id)
			if stderrors.Is(err, remote.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			*dst, *found = data, true
			return nil
		})
	}
	single(remote.CollectionStats, remote.DocStats, &d.stats, &d.hasStats)
	single(remote.CollectionLearningStatus, remote.DocLearningStatus, &d.status, &d.hasStatus)
	single(remote.CollectionDailyGoals, remote.DocDailyGoal, &d.goal, &d.hasGoal)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *grammarService) loadLocked(ctx context.Context, force bool) error {
	if s.loaded && !force {
		return nil
	}
	log := logger.FromContext(ctx).WithPrefix("grammar")
	now := s.opts.Now()

	local := s.readLocal(ctx)
	entries := local.entries
	stats, status, goal := local.stats, local.status, local.goal
	if !local.hasEntries {
		entries = defaults.Grammar()
	}

	rd, err := s.readRemote(ctx)
	s.synced = err == nil
	if err != nil {
		log.Warn("remote load failed, using local data: %v", err)
	} else {
		writes := map[string]any{}
		if remoteEntries := decodeDocs(ctx, rd.docs); len(remoteEntries) > 0 {
			entries = remoteEntries
			writes[repository.KeyGrammar] = entries
		}
		if rd.hasStats {
			var v models.Stats
			if decodeInto(ctx, "stats", rd.stats, &v) {
				stats = v
				writes[repository.KeyStats] = v
			}
		}
		if rd.hasStatus {
			var v models.StatusMap
			if decodeInto(ctx, "learning status", rd.status, &v) {
				status = v
				writes[repository.KeyLearningStatus] = v
			}
		}
		if rd.hasGoal {
			var v models.DailyGoal
			if decodeInto(ctx, "daily goal", rd.goal, &v) {
				goal = &v
				writes[repository.KeyDailyGoal] = v
			}
		}
		if len(writes) > 0 {
			if err := repository.PutJSONMany(ctx, s.local, writes); err != nil {
				log.Warn("failed to cache remote data locally: %v", err)
			}
		}
	}

	if stats == nil {
		stats = models.Stats{}
	}
	if status == nil {
		status = models.StatusMap{}
	}
	if goal == nil {
		g := models.NewDailyGoal(s.opts.DefaultGoal, now)
		goal = &g
	}

	s.entries = lo.Map(entries, func(e models.GrammarEntry, _ int) models.GrammarEntry { return sanitize(e) })
	s.stats, s.status, s.goal = stats, status, *goal
	s.loaded = true
	log.Info("grammar loaded: entries=%d remote=%t", len(s.entries), s.synced)

	if s.goal.Rollover(now) {
		s.persistGoal(ctx)
	}
	s.dirty = false
	return nil
}

func (s *grammarService) ensureLoaded(ctx context.Context) error {
	return s.loadLocked(ctx, false)
}

func (s *grammarService) snapshotLocked() *models.Snapshot {
	return &models.Snapshot{
		Entries:   cloneEntries(s.entries),
		Stats:     s.stats.Clone(),
		Status:    s.status.Clone(),
		DailyGoal: s.goal.Clone(),
	}
}

func (s *grammarService) List(ctx context.Context, filter models.GrammarFilter) ([]models.GrammarEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := lo.Filter(s.entries, func(e models.GrammarEntry, _ int) bool {
		if query != "" && !matchesQuery(e, query) {
			return false
		}
		if !matchesStatus(s.status[e.ID], filter.Status) {
			return false
		}
		return matchesLevel(e.Level, filter.Level)
	})
	out = cloneEntries(out)
	sortEntries(out, filter.Sort)
	return out, nil
}

func matchesQuery(e models.GrammarEntry, query string) bool {
	for _, field := range []string{e.Structure, e.Meaning, e.Explanation, e.Note} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func matchesStatus(status models.Status, filter string) bool {
	switch filter {
	case "", models.FilterAll:
		return true
	case models.FilterUnset:
		return status == models.StatusUnset
	}
	return string(status) == filter
}

func matchesLevel(level, filter string) bool {
	switch filter {
	case "", models.FilterAll:
		return true
	case models.FilterUnclassified:
		return strings.TrimSpace(level) == ""
	}
	return strings.EqualFold(strings.TrimSpace(level), filter)
}

func sortEntries(entries []models.GrammarEntry, order string) {
	switch order {
	case models.SortNewest:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].NumericID() > entries[j].NumericID() })
	case models.SortAZ:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Structure < entries[j].Structure })
	case models.SortZA:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Structure > entries[j].Structure })
	default:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].NumericID() < entries[j].NumericID() })
	}
}

func (s *grammarService) Get(ctx context.Context, id string) (*models.GrammarEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	i := s.indexOf(id)
	if i < 0 {
		return nil, errors.NewNotFoundError("grammar", id)
	}
	e := s.entries[i].Clone()
	return &e, nil
}

func (s *grammarService) Levels(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	levels := lo.Uniq(lo.FilterMap(s.entries, func(e models.GrammarEntry, _ int) (string, bool) {
		l := strings.TrimSpace(e.Level)
		return l, l != ""
	}))
	sort.Strings(levels)
	return levels, nil
}

func (s *grammarService) Create(ctx context.Context, in models.GrammarInput) (*models.GrammarEntry, error) {
	log := logger.FromContext(ctx).WithPrefix("grammar")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	entry := sanitize(models.GrammarEntry{
		Structure:   in.Structure,
		Level:       in.Level,
		Meaning:     in.Meaning,
		Explanation: in.Explanation,
		Note:        in.Note,
		Examples:    in.ResolvedExamples(),
	})
	if err := s.validate(entry, ""); err != nil {
		return nil, err
	}
	entry.ID = s.nextID()

	s.entries = append(s.entries, entry)
	if err := s.persistEntries(ctx); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return nil, err
	}
	s.enqueue(ctx, "grammar_create", entrySetOp(entry))
	log.Info("grammar created: id=%s structure=%s", entry.ID, entry.Structure)

	out := entry.Clone()
	return &out, nil
}

func (s *grammarService) Update(ctx context.Context, id string, patch models.GrammarPatch) (*models.GrammarEntry, error) {
	log := logger.FromContext(ctx).WithPrefix("grammar")
	s.mu.Lock()
	if err := s.ensureLoaded(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, errors.NewNotFoundError("grammar", id)
	}

	prev := s.entries[i]
	updated := sanitize(patch.Apply(prev))
	updated.ID = prev.ID
	if err := s.validate(updated, prev.ID); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.entries[i] = updated
	if err := s.persistEntries(ctx); err != nil {
		s.entries[i] = prev
		s.mu.Unlock()
		return nil, err
	}
	s.enqueue(ctx, "grammar_update", entrySetOp(updated))
	hooks := append([]func(context.Context, models.GrammarEntry){}, s.hooks...)
	s.mu.Unlock()

	log.Info("grammar updated: id=%s", id)
	for _, fn := range hooks {
		fn(ctx, updated.Clone())
	}
	out := updated.Clone()
	return &out, nil
}

// Delete removes an entry. Deleting an unknown id does nothing.
func (s *grammarService) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx).WithPrefix("grammar")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	i := s.indexOf(id)
	if i < 0 {
		log.Debug("delete of unknown grammar ignored: id=%s", id)
		return nil
	}

	prev := s.entries
	s.entries = append(cloneEntries(s.entries[:i]), s.entries[i+1:]...)
	if err := s.persistEntries(ctx); err != nil {
		s.entries = prev
		return err
	}
	s.enqueue(ctx, "grammar_delete", remote.DeleteOp(remote.CollectionGrammar, id))
	log.Info("grammar deleted: id=%s", id)
	return nil
}

// validate checks required fields and rejects a structure that duplicates
// another entry's. selfID is excluded from the duplicate check.
func (s *grammarService) validate(e models.GrammarEntry, selfID string) error {
	if e.Structure == "" {
		return errors.NewValidationError("structure", "is required")
	}
	if e.Meaning == "" {
		return errors.NewValidationError("meaning", "is required")
	}
	key := textmatch.StructureKey(e.Structure)
	if dup, ok := lo.Find(s.entries, func(o models.GrammarEntry) bool {
		return o.ID != selfID && textmatch.StructureKey(o.Structure) == key
	}); ok {
		return errors.NewConflictError("structure already exists as entry " + dup.ID)
	}
	return nil
}

func (s *grammarService) indexOf(id string) int {
	id = strings.TrimSpace(id)
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *grammarService) nextID() string {
	return idAfter(s.maxNumericID())
}

func sanitize(e models.GrammarEntry) models.GrammarEntry {
	e = e.Clone()
	e.ID = strings.TrimSpace(e.ID)
	e.Structure = strings.TrimSpace(e.Structure)
	e.Meaning = strings.TrimSpace(e.Meaning)
	e.Level = strings.TrimSpace(e.Level)
	if e.Examples == nil {
		e.Examples = []models.Example{}
	}
	return e
}

func cloneEntries(entries []models.GrammarEntry) []models.GrammarEntry {
	return lo.Map(entries, func(e models.GrammarEntry, _ int) models.GrammarEntry { return e.Clone() })
}
