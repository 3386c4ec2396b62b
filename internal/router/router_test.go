package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"campushub/internal/handlers/dto"
	"campushub/internal/models"
	"campushub/internal/services"
	"campushub/internal/testutil"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	engine  *gin.Engine
	store   *testutil.MemoryStore
	storage *testutil.MemoryStorage
	forum   models.Forum
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLimit(t, 1<<20)
}

func newTestServerWithLimit(t *testing.T, maxUploadBytes int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		store:   testutil.NewMemoryStore(),
		storage: testutil.NewMemoryStorage(),
	}
	ts.forum = ts.store.AddForum("General")

	r := gin.New()
	r.Use(sessions.Sessions("campushub_session", cookie.NewStore([]byte("test"))))
	RegisterRoutes(r, Deps{
		Service:        services.NewMessageService(ts.store, ts.storage),
		MaxUploadBytes: maxUploadBytes,
	})
	ts.engine = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) messagesPath() string {
	return "/api/forums/" + ts.forum.ID.String() + "/messages"
}

func TestHealthAndForums(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/forums", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Forums []models.Forum `json:"forums"`
	}](t, w)
	require.Len(t, got.Forums, 1)
	assert.Equal(t, "General", got.Forums[0].Name)
}

func TestMessageLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, ts.messagesPath(), gin.H{"user_id": "alice", "text": "hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	parent := decode[models.Message](t, w)
	assert.Equal(t, ts.forum.ID, parent.ForumID)
	assert.NotEmpty(t, parent.TextHTML)

	w = ts.do(t, http.MethodPost, "/api/messages/"+parent.ID.String()+"/replies", gin.H{"user_id": "bob", "text": "hi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reply := decode[models.Message](t, w)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)

	w = ts.do(t, http.MethodGet, ts.messagesPath()+"?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.MessageListResponse](t, w)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, int64(1), list.Messages[0].ReplyCount)
	assert.Equal(t, services.Pagination{Total: 1, Page: 1, Limit: 10, Pages: 1}, list.Pagination)

	w = ts.do(t, http.MethodGet, "/api/messages/"+parent.ID.String()+"/replies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	replies := decode[dto.ReplyListResponse](t, w)
	require.Len(t, replies.Replies, 1)
	assert.Equal(t, services.DefaultLimit, replies.Pagination.Limit)

	w = ts.do(t, http.MethodDelete, "/api/messages/"+parent.ID.String(), gin.H{"userId": "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/messages/"+reply.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/messages/"+parent.ID.String()+"/replies", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPollVoting(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, ts.messagesPath(), gin.H{
		"user_id": "alice",
		"type":    "poll",
		"poll":    gin.H{"question": "Colour?", "options": []string{"Red", "Blue"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode[models.Message](t, w)
	votePath := "/api/messages/" + m.ID.String() + "/vote"

	w = ts.do(t, http.MethodPut, votePath, gin.H{"userId": "u1", "optionIndex": 0, "voteType": "add"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got struct {
		Poll    models.Poll `json:"poll"`
		MyVotes []int       `json:"my_votes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Poll.TotalVotes)
	assert.Equal(t, []int{0}, got.MyVotes)

	w = ts.do(t, http.MethodPut, votePath, gin.H{"userId": "u1", "optionIndex": 1})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 0, got.Poll.Options[0].Votes)
	assert.Equal(t, 1, got.Poll.Options[1].Votes)
	assert.Equal(t, []int{1}, got.MyVotes)

	w = ts.do(t, http.MethodPut, votePath, gin.H{"userId": "u1", "optionIndex": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, votePath, gin.H{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, ts.messagesPath(), gin.H{"user_id": "alice", "text": "plain"})
	require.Equal(t, http.StatusCreated, w.Code)
	plain := decode[models.Message](t, w)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed forum", http.MethodGet, "/api/forums/xyz/messages", nil, http.StatusBadRequest},
		{"unknown forum", http.MethodPost, "/api/forums/" + uuid.NewString() + "/messages", gin.H{"user_id": "a", "text": "x"}, http.StatusNotFound},
		{"missing user", http.MethodPost, ts.messagesPath(), gin.H{"text": "x"}, http.StatusBadRequest},
		{"empty message", http.MethodPost, ts.messagesPath(), gin.H{"user_id": "a"}, http.StatusBadRequest},
		{"bad poll type", http.MethodPost, ts.messagesPath(), gin.H{"user_id": "a", "poll": gin.H{"question": "q", "options": []string{"a", "b"}, "type": "ranked"}}, http.StatusBadRequest},
		{"vote on plain message", http.MethodPut, "/api/messages/" + plain.ID.String() + "/vote", gin.H{"userId": "u", "optionIndex": 0}, http.StatusBadRequest},
		{"vote on missing message", http.MethodPut, "/api/messages/" + uuid.NewString() + "/vote", gin.H{"userId": "u", "optionIndex": 0}, http.StatusNotFound},
		{"reply to missing parent", http.MethodPost, "/api/messages/" + uuid.NewString() + "/replies", gin.H{"user_id": "a", "text": "x"}, http.StatusNotFound},
		{"delete malformed id", http.MethodDelete, "/api/messages/42", nil, http.StatusBadRequest},
		{"live without redis", http.MethodGet, "/api/forums/" + ts.forum.ID.String() + "/live", nil, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestMultipartCreate(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("payload", `{"user_id":"alice","text":"see attached"}`))
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("campus notes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, ts.messagesPath(), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode[models.Message](t, w)
	require.NotNil(t, m.File.Data())
	assert.Equal(t, "notes.txt", m.File.Data().Name)
	assert.Equal(t, int64(len("campus notes")), m.File.Data().Size)
	assert.Equal(t, 1, ts.storage.Len())
}

func TestMultipartFormFields(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("user_id", "alice"))
	require.NoError(t, mw.WriteField("text", "form post"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, ts.messagesPath(), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode[models.Message](t, w)
	assert.Equal(t, "alice", m.UserID)
	assert.Equal(t, "form post", m.Text)
}

func multipartFile(t *testing.T, field, name string, size int) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("user_id", "alice"))
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("x"), size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestUploadTooLarge(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"file above per-attachment limit", 64},
		{"body above request limit", 2 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServerWithLimit(t, 16)
			body, contentType := multipartFile(t, "file", "big.bin", tt.size)

			req := httptest.NewRequest(http.MethodPost, ts.messagesPath(), body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			ts.engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
			assert.Zero(t, ts.storage.Len())
			assert.Empty(t, ts.store.Created)
		})
	}
}
