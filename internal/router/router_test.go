package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecollab/internal/dto"
	"codecollab/internal/model"
	"codecollab/internal/pkg/logger"
)

const projectID = "proj-1"

func newTestRouter() *Router {
	self := Identity{UserID: "alice", Email: "alice@example.com", Name: "Alice"}
	return NewRouter(projectID, self, logger.NewNopLogger())
}

func payload(id, senderID, body string) dto.MessagePayload {
	return dto.MessagePayload{
		ID:        id,
		ProjectID: projectID,
		Message:   body,
		SenderID:  senderID,
		Timestamp: time.Now(),
	}
}

func TestComposeOutgoing(t *testing.T) {
	r := newTestRouter()

	m := r.ComposeOutgoing("  hello world  ", "")
	require.NotNil(t, m)
	assert.Equal(t, "hello world", m.Body)
	assert.True(t, m.Outgoing)
	assert.False(t, m.IsPrivate)
	assert.NotEmpty(t, m.ID)

	// Local echo lands in history before any transport acknowledgement.
	history := r.VisibleHistory("alice")
	require.Len(t, history, 1)
	assert.Equal(t, m.ID, history[0].ID)
}

func TestComposeOutgoingEmptyIsNoop(t *testing.T) {
	r := newTestRouter()

	assert.Nil(t, r.ComposeOutgoing("   ", ""))
	assert.Empty(t, r.VisibleHistory("alice"))
}

func TestComposeOutgoingPrivateTarget(t *testing.T) {
	r := newTestRouter()

	m := r.ComposeOutgoing("psst", "bob")
	require.NotNil(t, m)
	assert.True(t, m.IsPrivate)
	assert.Equal(t, "bob", m.ReceiverID)

	// Targeting yourself degrades to a broadcast.
	m = r.ComposeOutgoing("note to self", "alice")
	require.NotNil(t, m)
	assert.False(t, m.IsPrivate)
	assert.Empty(t, m.ReceiverID)
}

func TestIngestDeduplicatesById(t *testing.T) {
	r := newTestRouter()

	first := r.Ingest(payload("m1", "bob", "hi"))
	require.NotNil(t, first)

	// Same id again, different content: still dropped.
	dup := payload("m1", "bob", "edited body")
	assert.Nil(t, r.Ingest(dup))
	assert.Len(t, r.VisibleHistory("alice"), 1)
}

func TestIngestDropsOwnEcho(t *testing.T) {
	r := newTestRouter()

	m := r.ComposeOutgoing("@ai write code", "")
	require.NotNil(t, m)

	// The relay broadcasts the sender's own message back.
	echo := dto.FromModel(*m)
	assert.Nil(t, r.Ingest(echo))
	assert.Len(t, r.VisibleHistory("alice"), 1)
}

func TestIngestDropsForeignProject(t *testing.T) {
	r := newTestRouter()

	p := payload("m1", "bob", "hi")
	p.ProjectID = "other-project"
	assert.Nil(t, r.Ingest(p))
	assert.Empty(t, r.VisibleHistory("alice"))
}

func TestIngestDropsMalformed(t *testing.T) {
	r := newTestRouter()

	missingID := payload("", "bob", "hi")
	missingProject := payload("m2", "bob", "hi")
	missingProject.ProjectID = ""

	assert.Nil(t, r.Ingest(missingID))
	assert.Nil(t, r.Ingest(missingProject))
	assert.Empty(t, r.VisibleHistory("alice"))
	assert.Equal(t, 2, r.Dropped())

	// The router stays responsive to valid events afterwards.
	assert.NotNil(t, r.Ingest(payload("m3", "bob", "still alive")))
}

func TestVisibilityFilter(t *testing.T) {
	r := newTestRouter()

	r.Ingest(payload("b1", "bob", "hello everyone"))

	private := payload("p1", "bob", "just for alice")
	private.IsPrivate = true
	receiver := "alice"
	private.ReceiverID = &receiver
	require.NotNil(t, r.Ingest(private))

	othersPrivate := payload("p2", "bob", "just for carol")
	othersPrivate.IsPrivate = true
	carol := "carol"
	othersPrivate.ReceiverID = &carol
	require.NotNil(t, r.Ingest(othersPrivate))

	aliceView := r.VisibleHistory("alice")
	assert.Len(t, aliceView, 2) // broadcast + her private

	bobView := r.VisibleHistory("bob")
	assert.Len(t, bobView, 3) // bob sent everything

	carolView := r.VisibleHistory("carol")
	assert.Len(t, carolView, 2) // broadcast + her private
}

func TestAIPendingLifecycle(t *testing.T) {
	r := newTestRouter()

	var transitions []bool
	r.OnAIPending(func(pending bool) {
		transitions = append(transitions, pending)
	})

	// Mention is a case-insensitive substring check on broadcasts.
	r.ComposeOutgoing("hey @AI make me a server", "")
	assert.True(t, r.AIPending())

	reply := payload("ai1", model.AISenderID, "here you go")
	require.NotNil(t, r.Ingest(reply))
	assert.False(t, r.AIPending())

	assert.Equal(t, []bool{true, false}, transitions)
}

func TestAIPendingIgnoresPrivateMention(t *testing.T) {
	r := newTestRouter()

	r.ComposeOutgoing("@ai but privately", "bob")
	assert.False(t, r.AIPending())
}

func TestAIPendingClearedByDisplayName(t *testing.T) {
	r := newTestRouter()

	r.ComposeOutgoing("@ai ping", "")
	require.True(t, r.AIPending())

	reply := payload("ai2", "assistant-7", "pong")
	reply.SenderName = model.AISenderName
	r.Ingest(reply)
	assert.False(t, r.AIPending())
}

func TestHistoryIsAppendOrdered(t *testing.T) {
	r := newTestRouter()

	r.Ingest(payload("m1", "bob", "one"))
	r.ComposeOutgoing("two", "")
	r.Ingest(payload("m3", "carol", "three"))

	history := r.VisibleHistory("alice")
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Body)
	assert.Equal(t, "two", history[1].Body)
	assert.Equal(t, "three", history[2].Body)
}
