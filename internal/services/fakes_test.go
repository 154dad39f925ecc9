package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

// memDB is an in-memory core.DocumentStore and core.UserStore.
type memDB struct {
	mu    sync.Mutex
	docs  []*models.Document
	users []*models.User
	logs  []models.UserLog
	logCh chan models.UserLog

	softDeleteErr error
}

func (m *memDB) CreateDocument(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.ID = int64(len(m.docs) + 1)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(doc.ID) * time.Minute)
	}
	cp := *doc
	m.docs = append(m.docs, &cp)
	return nil
}

func (m *memDB) find(match func(*models.Document) bool) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.DeletedAt == nil && match(d) {
			cp := *d
			return &cp
		}
	}
	return nil
}

func (m *memDB) GetDocumentByID(_ context.Context, id int64) (*models.Document, error) {
	return m.find(func(d *models.Document) bool { return d.ID == id }), nil
}

func (m *memDB) GetDocumentByStorageID(_ context.Context, id string) (*models.Document, error) {
	return m.find(func(d *models.Document) bool { return d.StorageID == id }), nil
}

func (m *memDB) GetDocumentByIndexID(_ context.Context, id string) (*models.Document, error) {
	return m.find(func(d *models.Document) bool { return d.IndexDocumentID == id }), nil
}

func (m *memDB) ListDocuments(_ context.Context, page, pageSize int) ([]models.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var live []models.Document
	for _, d := range m.docs {
		if d.DeletedAt == nil {
			live = append(live, *d)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	start := (page - 1) * pageSize
	if start >= len(live) {
		return nil, len(live), nil
	}
	end := min(start+pageSize, len(live))
	return live[start:end], len(live), nil
}

func (m *memDB) SoftDeleteDocument(_ context.Context, id int64) (bool, error) {
	if m.softDeleteErr != nil {
		return false, m.softDeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.ID == id && d.DeletedAt == nil {
			now := time.Now()
			d.DeletedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (m *memDB) CreateUser(_ context.Context, u *models.User, createdBy *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return core.Errorf(core.KindConflict, "db.create_user", "username already exists")
		}
	}
	u.ID = int64(len(m.users) + 1)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users = append(m.users, &cp)
	m.logs = append(m.logs, models.UserLog{UserID: createdBy, Action: models.ActionCreateUser, Details: "Created user " + u.Username})
	return nil
}

func (m *memDB) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memDB) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memDB) UpdatePassword(_ context.Context, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			u.PasswordHash = hash
			m.logs = append(m.logs, models.UserLog{UserID: &userID, Action: models.ActionUpdatePassword, Details: "Password updated"})
			return nil
		}
	}
	return core.Errorf(core.KindNotFound, "db.update_password", "user not found")
}

func (m *memDB) CreateUserLog(_ context.Context, entry *models.UserLog) error {
	m.mu.Lock()
	m.logs = append(m.logs, *entry)
	ch := m.logCh
	m.mu.Unlock()
	if ch != nil {
		ch <- *entry
	}
	return nil
}

type memObjects struct {
	mu        sync.Mutex
	deleted   []string
	deleteErr error
}

func (o *memObjects) Upload(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("not implemented")
}

func (o *memObjects) Get(_ context.Context, id string) (*models.StoredObject, error) {
	return &models.StoredObject{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF " + id)}, nil
}

func (o *memObjects) Delete(_ context.Context, id string) (bool, error) {
	if o.deleteErr != nil {
		return false, o.deleteErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, id)
	return true, nil
}

func (o *memObjects) SignedURL(_ context.Context, id string, ttl time.Duration) (string, error) {
	return "https://storage.example/" + id + "?ttl=" + ttl.String(), nil
}

type memIndexer struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (x *memIndexer) CreateDocument(context.Context, string, []byte) (*core.IndexedDocument, error) {
	return nil, errors.New("not implemented")
}

func (x *memIndexer) DeleteDocument(_ context.Context, id string) error {
	if x.err != nil {
		return x.err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.deleted = append(x.deleted, id)
	return nil
}

type fakeChat struct {
	last core.ChatMessage
	err  error
	args []string
}

func (c *fakeChat) SendMessage(_ context.Context, msg core.ChatMessage) (io.ReadCloser, error) {
	c.last = msg
	if c.err != nil {
		return nil, c.err
	}
	return io.NopCloser(strings.NewReader("data: {\"answer\":\"hi\"}\n\n")), nil
}

func (c *fakeChat) Conversations(_ context.Context, user string) (json.RawMessage, error) {
	c.args = []string{user}
	return json.RawMessage(`{"data":[]}`), nil
}

func (c *fakeChat) Messages(_ context.Context, user, conversationID string) (json.RawMessage, error) {
	c.args = []string{user, conversationID}
	return json.RawMessage(`{"data":[]}`), nil
}

func (c *fakeChat) SuggestedQuestions(_ context.Context, messageID, user string) (json.RawMessage, error) {
	c.args = []string{messageID, user}
	return json.RawMessage(`{"data":["why?"]}`), nil
}
