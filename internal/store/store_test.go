package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/qrchat/internal/apperr"
	"github.com/zulandar/qrchat/internal/fanout"
	"github.com/zulandar/qrchat/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// A single connection keeps every goroutine on the same in-memory
	// database.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&models.Session{}, &models.Visitor{}, &models.VisitorMember{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Opts{DB: testDB(t)})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustCreateSession(t *testing.T, s *Store) *models.Session {
	t.Helper()
	sess, err := s.CreateSession(context.Background(), CreateSessionParams{Name: "Seminar", CreatedBy: "admin"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func mustRegister(t *testing.T, s *Store, sessionID string) *models.Visitor {
	t.Helper()
	v, err := s.RegisterVisitor(context.Background(), sessionID, RegisterVisitorParams{
		Name:      "Alice",
		Phone:     "555-0101",
		Email:     "alice@example.com",
		VisitType: models.VisitSelf,
	})
	if err != nil {
		t.Fatalf("register visitor: %v", err)
	}
	return v
}

func TestNew_RequiresDB(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestCreateSession_Defaults(t *testing.T) {
	s := testStore(t)
	sess, err := s.CreateSession(context.Background(), CreateSessionParams{Name: "  Demo  ", CreatedBy: "admin"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID == "" {
		t.Error("session id not assigned")
	}
	if !sess.IsActive {
		t.Error("new session should be active")
	}
	if sess.Name != "Demo" {
		t.Errorf("Name = %q, want trimmed", sess.Name)
	}
	if sess.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
}

func TestListSessions_NewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Create with distinct timestamps so the ordering is observable.
	for i, name := range []string{"first", "second", "third"} {
		sess := &models.Session{
			ID:        name,
			Name:      name,
			IsActive:  true,
			CreatedAt: time.Date(2025, 6, 1, 10, i, 0, 0, time.UTC),
		}
		if err := s.db.Create(sess).Error; err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3", len(sessions))
	}
	if sessions[0].Name != "third" || sessions[2].Name != "first" {
		t.Errorf("order = %s,%s,%s, want newest first", sessions[0].Name, sessions[1].Name, sessions[2].Name)
	}
}

func TestUpdateSession_FieldSemantics(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)

	// Set both fields.
	got, err := s.UpdateSession(ctx, sess.ID, UpdateSessionParams{
		Name:      OptionalString{Set: true, Value: "Renamed"},
		PosterURL: OptionalString{Set: true, Value: "https://img.example/p.png"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Renamed" || got.PosterURL != "https://img.example/p.png" {
		t.Errorf("after set: %+v", got)
	}

	// Unset field stays, set-empty clears.
	got, err = s.UpdateSession(ctx, sess.ID, UpdateSessionParams{
		PosterURL: OptionalString{Set: true, Value: ""},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q, want unchanged", got.Name)
	}
	if got.PosterURL != "" {
		t.Errorf("PosterURL = %q, want cleared", got.PosterURL)
	}
}

func TestUpdateSession_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.UpdateSession(context.Background(), "missing", UpdateSessionParams{})
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestSetActive_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)

	for i := 0; i < 2; i++ {
		got, err := s.SetActive(ctx, sess.ID, false)
		if err != nil {
			t.Fatalf("set active (call %d): %v", i+1, err)
		}
		if got.IsActive {
			t.Errorf("call %d: IsActive = true, want false", i+1)
		}
	}

	if _, err := s.SetActive(ctx, "missing", false); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestRegisterVisitor_CollectsAllValidationErrors(t *testing.T) {
	s := testStore(t)
	sess := mustCreateSession(t, s)

	_, err := s.RegisterVisitor(context.Background(), sess.ID, RegisterVisitorParams{
		Name:      "  ",
		Phone:     "",
		Email:     "a@b.c",
		VisitType: models.VisitSelf,
	})
	var verr *apperr.Error
	if !asAppErr(err, &verr) || verr.Code != apperr.CodeValidation {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["name"]; !ok {
		t.Error("missing name in collected fields")
	}
	if _, ok := verr.Fields["phone"]; !ok {
		t.Error("missing phone in collected fields")
	}
	if _, ok := verr.Fields["email"]; ok {
		t.Error("email was present, should not be flagged")
	}
}

func TestRegisterVisitor_CompanionValidation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)

	_, err := s.RegisterVisitor(ctx, sess.ID, RegisterVisitorParams{
		Name:      "Bob",
		Phone:     "555",
		Email:     "b@x.y",
		VisitType: models.VisitWithCompanion,
		Companion: &MemberParams{Name: "  ", Phone: "556"},
	})
	var verr *apperr.Error
	if !asAppErr(err, &verr) || verr.Code != apperr.CodeValidation {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["companion.name"]; !ok {
		t.Errorf("fields = %v, want companion.name flagged", verr.Fields)
	}

	// No visitor row may exist after a failed registration.
	var count int64
	s.db.Model(&models.Visitor{}).Count(&count)
	if count != 0 {
		t.Errorf("visitor count = %d after failed registration, want 0", count)
	}
}

func TestRegisterVisitor_CompanionNotAllowedForSelf(t *testing.T) {
	s := testStore(t)
	sess := mustCreateSession(t, s)

	_, err := s.RegisterVisitor(context.Background(), sess.ID, RegisterVisitorParams{
		Name:      "Bob",
		Phone:     "555",
		Email:     "b@x.y",
		VisitType: models.VisitSelf,
		Companion: &MemberParams{Name: "Eve", Phone: "556"},
	})
	var verr *apperr.Error
	if !asAppErr(err, &verr) || verr.Code != apperr.CodeValidation {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["companion"]; !ok {
		t.Errorf("fields = %v, want companion flagged", verr.Fields)
	}
}

func TestRegisterVisitor_WithGroup(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)

	v, err := s.RegisterVisitor(ctx, sess.ID, RegisterVisitorParams{
		Name:      "Carol",
		Phone:     "555",
		Email:     "  Carol@Example.COM  ",
		VisitType: models.VisitWithGroup,
		Companion: &MemberParams{Name: "Dan", Phone: "557"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if v.Email != "carol@example.com" {
		t.Errorf("Email = %q, want trimmed and lowercased", v.Email)
	}
	if len(v.Members) != 1 {
		t.Fatalf("got %d members, want exactly 1", len(v.Members))
	}
	if v.Members[0].Relation != models.RelationMember {
		t.Errorf("Relation = %q, want %q", v.Members[0].Relation, models.RelationMember)
	}

	// The member row round-trips through GetVisitor.
	got, err := s.GetVisitor(ctx, sess.ID, v.ID)
	if err != nil {
		t.Fatalf("get visitor: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].Name != "Dan" {
		t.Errorf("loaded members = %+v", got.Members)
	}
}

func TestRegisterVisitor_GateErrors(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	params := RegisterVisitorParams{Name: "A", Phone: "1", Email: "a@b.c", VisitType: models.VisitSelf}

	if _, err := s.RegisterVisitor(ctx, "missing", params); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("unknown session: err = %v, want NotFound", err)
	}

	sess := mustCreateSession(t, s)
	if _, err := s.SetActive(ctx, sess.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := s.RegisterVisitor(ctx, sess.ID, params); !apperr.IsCode(err, apperr.CodeSessionClosed) {
		t.Errorf("inactive session: err = %v, want SessionClosed", err)
	}
}

func TestGetVisitor_ScopedToSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s1 := mustCreateSession(t, s)
	s2 := mustCreateSession(t, s)
	v := mustRegister(t, s, s1.ID)

	if _, err := s.GetVisitor(ctx, s2.ID, v.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("cross-session lookup: err = %v, want NotFound", err)
	}
}

func TestPostMessage_EmptyBody(t *testing.T) {
	s := testStore(t)
	sess := mustCreateSession(t, s)
	v := mustRegister(t, s, sess.ID)

	_, err := s.PostMessage(context.Background(), sess.ID, v.ID, "   ")
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestPostMessage_CrossSessionSenderRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s1 := mustCreateSession(t, s)
	s2 := mustCreateSession(t, s)
	v := mustRegister(t, s, s1.ID)

	_, err := s.PostMessage(ctx, s2.ID, v.ID, "hello")
	if !apperr.IsCode(err, apperr.CodeUnknownSender) {
		t.Errorf("err = %v, want UnknownSender", err)
	}

	var count int64
	s.db.Model(&models.Message{}).Count(&count)
	if count != 0 {
		t.Errorf("message count = %d after rejected post, want 0", count)
	}
}

func TestPostMessage_UnregisteredSender(t *testing.T) {
	s := testStore(t)
	sess := mustCreateSession(t, s)

	_, err := s.PostMessage(context.Background(), sess.ID, "never-registered", "hi")
	if !apperr.IsCode(err, apperr.CodeUnknownSender) {
		t.Errorf("err = %v, want UnknownSender", err)
	}
}

func TestDeactivation_BlocksWritesKeepsReads(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)
	v := mustRegister(t, s, sess.ID)
	if _, err := s.PostMessage(ctx, sess.ID, v.ID, "before"); err != nil {
		t.Fatalf("post: %v", err)
	}

	if _, err := s.SetActive(ctx, sess.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := s.PostMessage(ctx, sess.ID, v.ID, "after"); !apperr.IsCode(err, apperr.CodeSessionClosed) {
		t.Errorf("post after deactivation: err = %v, want SessionClosed", err)
	}

	visitors, err := s.ListVisitors(ctx, sess.ID)
	if err != nil || len(visitors) != 1 {
		t.Errorf("ListVisitors = %d,%v, want 1 visitor readable", len(visitors), err)
	}
	msgs, err := s.ListMessages(ctx, sess.ID)
	if err != nil || len(msgs) != 1 {
		t.Errorf("ListMessages = %d,%v, want 1 message readable", len(msgs), err)
	}
}

func TestConcurrentPosts_TotallyOrdered(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)
	v := mustRegister(t, s, sess.ID)

	const posters = 100
	var wg sync.WaitGroup
	errs := make(chan error, posters)
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.PostMessage(ctx, sess.ID, v.ID, "concurrent"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent post failed: %v", err)
	}

	msgs, err := s.ListMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != posters {
		t.Fatalf("persisted %d messages, want %d", len(msgs), posters)
	}
	for i := 1; i < len(msgs); i++ {
		prev, cur := msgs[i-1], msgs[i]
		if !prev.Before(cur) {
			t.Fatalf("messages %d and %d do not resolve strictly: (%v,%s) vs (%v,%s)",
				i-1, i, prev.SentAt, prev.ID, cur.SentAt, cur.ID)
		}
	}
}

func TestSubscribe_SnapshotThenIncrements(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)
	v := mustRegister(t, s, sess.ID)
	for _, body := range []string{"one", "two", "three"} {
		if _, err := s.PostMessage(ctx, sess.ID, v.ID, body); err != nil {
			t.Fatalf("post %s: %v", body, err)
		}
	}

	snap, sub, err := s.Subscribe(ctx, sess.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if len(snap.Messages) != 3 {
		t.Fatalf("snapshot has %d messages, want 3", len(snap.Messages))
	}
	if len(snap.Visitors) != 1 {
		t.Fatalf("snapshot has %d visitors, want 1", len(snap.Visitors))
	}
	if snap.Session.ID != sess.ID {
		t.Errorf("snapshot session = %s, want %s", snap.Session.ID, sess.ID)
	}

	// Subsequent posts arrive as increments, no duplicates of the snapshot.
	posted, err := s.PostMessage(ctx, sess.ID, v.ID, "four")
	if err != nil {
		t.Fatalf("post four: %v", err)
	}
	select {
	case evt := <-sub.Events():
		if evt.Type != fanout.EventMessageAdded || evt.Message.ID != posted.ID {
			t.Errorf("event = %+v, want message %s", evt, posted.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for increment")
	}
	select {
	case evt := <-sub.Events():
		t.Errorf("unexpected extra event %+v", evt)
	default:
	}
}

func TestSubscribe_UnknownSession(t *testing.T) {
	s := testStore(t)
	_, _, err := s.Subscribe(context.Background(), "missing")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestFailedWrite_PublishesNothing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)
	mustRegister(t, s, sess.ID)

	_, sub, err := s.Subscribe(ctx, sess.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := s.PostMessage(ctx, sess.ID, "ghost", "boo"); err == nil {
		t.Fatal("expected unknown sender error")
	}
	select {
	case evt := <-sub.Events():
		t.Errorf("failed write published event %+v", evt)
	default:
	}
}

// Scenario from the acceptance checklist: create, register, post, observe,
// deactivate, delete.
func TestLifecycleScenario(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := mustCreateSession(t, s)
	if !sess.IsActive {
		t.Fatal("fresh session should be active")
	}

	v, err := s.RegisterVisitor(ctx, sess.ID, RegisterVisitorParams{
		Name: "V", Phone: "1", Email: "v@e.x", VisitType: models.VisitSelf,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := s.PostMessage(ctx, sess.ID, v.ID, "hello"); err != nil {
		t.Fatalf("post: %v", err)
	}
	msgs, err := s.ListMessages(ctx, sess.ID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("ListMessages = %d,%v, want exactly the hello message", len(msgs), err)
	}
	if msgs[0].VisitorID != v.ID || msgs[0].Body != "hello" {
		t.Errorf("message = %+v, want {userId: %s, body: hello}", msgs[0], v.ID)
	}

	if _, err := s.SetActive(ctx, sess.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = s.RegisterVisitor(ctx, sess.ID, RegisterVisitorParams{
		Name: "V2", Phone: "2", Email: "v2@e.x", VisitType: models.VisitSelf,
	})
	if !apperr.IsCode(err, apperr.CodeSessionClosed) {
		t.Errorf("register after deactivation: err = %v, want SessionClosed", err)
	}

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSession(ctx, sess.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("get after delete: err = %v, want NotFound", err)
	}
	if err := s.DeleteSession(ctx, sess.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("double delete: err = %v, want NotFound", err)
	}
}

func TestCanWrite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := mustCreateSession(t, s)

	if !s.CanWrite(ctx, sess.ID) {
		t.Error("CanWrite = false for active session")
	}
	if _, err := s.SetActive(ctx, sess.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if s.CanWrite(ctx, sess.ID) {
		t.Error("CanWrite = true for inactive session")
	}
	if s.CanWrite(ctx, "missing") {
		t.Error("CanWrite = true for missing session")
	}
}

// recordingNotifier captures notifier calls for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	visitors []string
	messages []string
	signal   chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{signal: make(chan struct{}, 16)}
}

func (n *recordingNotifier) VisitorRegistered(_ context.Context, _ *models.Session, v *models.Visitor) {
	n.mu.Lock()
	n.visitors = append(n.visitors, v.ID)
	n.mu.Unlock()
	n.signal <- struct{}{}
}

func (n *recordingNotifier) MessageReceived(_ context.Context, _ *models.Session, _ *models.Visitor, m *models.Message) {
	n.mu.Lock()
	n.messages = append(n.messages, m.ID)
	n.mu.Unlock()
	n.signal <- struct{}{}
}

func TestNotifier_CalledOnWrites(t *testing.T) {
	n := newRecordingNotifier()
	s, err := New(Opts{DB: testDB(t), Notifier: n})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	sess := mustCreateSession(t, s)
	v := mustRegister(t, s, sess.ID)
	if _, err := s.PostMessage(ctx, sess.ID, v.ID, "hi"); err != nil {
		t.Fatalf("post: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-n.signal:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for notifier calls")
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.visitors) != 1 || len(n.messages) != 1 {
		t.Errorf("notifier saw %d visitors, %d messages, want 1 and 1", len(n.visitors), len(n.messages))
	}
}

// asAppErr is a tiny helper so tests read naturally.
func asAppErr(err error, target **apperr.Error) bool {
	return errors.As(err, target)
}
