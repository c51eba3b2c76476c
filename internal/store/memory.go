// In-memory Store implementation with an optional JSON snapshot.
// Used when PostgreSQL is not configured (local dev, tests).
// Supports file-based snapshot persistence so data survives restarts.

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/pkg/models"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Conversations map[string]*models.Conversation `json:"conversations"`
	Messages      map[string][]*models.Message    `json:"messages"` // key: conversation id
}

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation // key: id
	messages      map[string][]*models.Message    // key: conversation id, oldest first

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutines to stop
	loopWG       sync.WaitGroup
	closeOnce    sync.Once

	now func() time.Time
}

// saveDebounce coalesces rapid writes into one disk flush.
const saveDebounce = 500 * time.Millisecond

// NewMemoryStore creates a new in-memory store. When dataDir is non-empty
// data is persisted to conversations.json in that directory.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
		saveCh:        make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
		now:           func() time.Time { return time.Now().UTC() },
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "conversations.json")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		m.loopWG.Add(1)
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop runs in a goroutine, debouncing save requests.
func (m *MemoryStore) saveLoop() {
	defer m.loopWG.Done()
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			select {
			case <-m.doneCh:
				return
			case <-time.After(saveDebounce):
			}
			m.saveSnapshot()
		}
	}
}

// saveSnapshot persists all data to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	data, err := json.MarshalIndent(snapshot{
		Conversations: m.conversations,
		Messages:      m.messages,
	}, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

// loadSnapshot reads data from disk on startup.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Conversations != nil {
		m.conversations = snap.Conversations
	}
	if snap.Messages != nil {
		m.messages = snap.Messages
	}

	log.Info().
		Int("conversations", len(m.conversations)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}

// ── Store lifecycle ─────────────────────────────────────────

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the save loop and flushes pending data.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.doneCh)
		m.loopWG.Wait()
		if m.snapshotPath != "" {
			m.saveSnapshot()
		}
	})
	return nil
}

// ── Conversations ───────────────────────────────────────────

// owned returns the conversation if it exists and belongs to owner.
// Caller must hold m.mu.
func (m *MemoryStore) owned(owner, id string) (*models.Conversation, error) {
	c, ok := m.conversations[id]
	if !ok || c.Owner != owner {
		return nil, conversationNotFound(id)
	}
	return c, nil
}

func (m *MemoryStore) CreateConversation(_ context.Context, owner, title, firstMessage string) (*models.Conversation, error) {
	title, preview := newConversation(title, firstMessage)
	now := m.now()
	c := &models.Conversation{
		ID:            uuid.NewString(),
		Owner:         owner,
		Title:         title,
		Preview:       preview,
		CreatedAt:     now,
		LastMessageAt: now,
	}

	m.mu.Lock()
	m.conversations[c.ID] = c
	m.mu.Unlock()
	m.requestSave()

	out := *c
	return &out, nil
}

func (m *MemoryStore) ListConversations(_ context.Context, owner string) ([]models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Conversation, 0)
	for _, c := range m.conversations {
		if c.Owner == owner {
			result = append(result, *c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].LastMessageAt.Equal(result[j].LastMessageAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].LastMessageAt.After(result[j].LastMessageAt)
	})
	return result, nil
}

func (m *MemoryStore) GetConversation(_ context.Context, owner, id string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.owned(owner, id)
	if err != nil {
		return nil, err
	}
	out := *c
	return &out, nil
}

func (m *MemoryStore) UpdateConversation(_ context.Context, owner, id string, upd models.ConversationUpdate) (*models.Conversation, error) {
	m.mu.Lock()
	c, err := m.owned(owner, id)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if upd.Title != nil {
		c.Title = *upd.Title
	}
	if upd.Preview != nil {
		c.Preview = models.Preview(*upd.Preview)
	}
	if upd.MessageCount != nil {
		c.MessageCount = *upd.MessageCount
	}
	out := *c
	m.mu.Unlock()

	m.requestSave()
	return &out, nil
}

func (m *MemoryStore) DeleteConversation(_ context.Context, owner, id string) error {
	m.mu.Lock()
	if _, err := m.owned(owner, id); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	m.mu.Unlock()

	m.requestSave()
	return nil
}

// ── Messages ────────────────────────────────────────────────

func (m *MemoryStore) SaveMessage(_ context.Context, owner, conversationID string, role models.Role, text string) (*models.Message, error) {
	m.mu.Lock()
	c, err := m.owned(owner, conversationID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		CreatedAt:      m.now(),
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	c.MessageCount++
	c.LastMessageAt = msg.CreatedAt
	if role == models.RoleUser {
		c.Preview = models.Preview(text)
	}
	m.mu.Unlock()

	m.requestSave()
	out := *msg
	return &out, nil
}

func (m *MemoryStore) ListMessages(_ context.Context, owner, conversationID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.owned(owner, conversationID); err != nil {
		return nil, err
	}
	msgs := m.messages[conversationID]
	result := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, *msg)
	}
	return result, nil
}

func (m *MemoryStore) LastMessage(_ context.Context, owner, conversationID string, role models.Role) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.owned(owner, conversationID); err != nil {
		return "", err
	}
	msgs := m.messages[conversationID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i].Text, nil
		}
	}
	return "", nil
}
