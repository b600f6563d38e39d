package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/iamdeveloper17/specsCloud/internal/api/handlers"
	"github.com/iamdeveloper17/specsCloud/internal/api/middleware"
	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
	"github.com/iamdeveloper17/specsCloud/internal/service"
	"github.com/iamdeveloper17/specsCloud/internal/storage/blobstore"
)

// --- In-memory репозитории для тестов API без PostgreSQL ---

type memFileRepo struct {
	mu      sync.Mutex
	records map[string]*model.FileRecord
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{records: make(map[string]*model.FileRecord)}
}

func (r *memFileRepo) Create(_ context.Context, f *model.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	cp := *f
	r.records[f.ID] = &cp
	return nil
}

func (r *memFileRepo) GetByID(_ context.Context, kind model.Kind, id string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Kind != kind {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFileRepo) List(_ context.Context, kind model.Kind, filters repository.FileListFilters) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.FileRecord
	for _, f := range r.records {
		if f.Kind != kind {
			continue
		}
		if filters.OwnerID != nil && f.OwnerID != *filters.OwnerID {
			continue
		}
		if filters.Category != nil && f.Category != *filters.Category {
			continue
		}
		if filters.FolderName != nil && f.FolderName != *filters.FolderName {
			continue
		}
		cp := *f
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *memFileRepo) ListAllKinds(_ context.Context, ownerID *string) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.FileRecord
	for _, f := range r.records {
		if ownerID != nil && f.OwnerID != *ownerID {
			continue
		}
		cp := *f
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *memFileRepo) Rename(_ context.Context, kind model.Kind, id, newName string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Kind != kind {
		return nil, repository.ErrNotFound
	}
	f.FileName = newName
	f.UpdatedAt = time.Now().UTC()
	cp := *f
	return &cp, nil
}

func (r *memFileRepo) Delete(_ context.Context, kind model.Kind, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Kind != kind {
		return "", repository.ErrNotFound
	}
	delete(r.records, id)
	return f.BlobRef, nil
}

func (r *memFileRepo) RenameFolder(_ context.Context, kind model.Kind, oldName, newName string, ownerID *string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, f := range r.records {
		if f.Kind != kind || f.FolderName != oldName {
			continue
		}
		if ownerID != nil && f.OwnerID != *ownerID {
			continue
		}
		f.FolderName = newName
		count++
	}
	return count, nil
}

func (r *memFileRepo) DeleteByFolder(_ context.Context, kind model.Kind, folderName string, ownerID *string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []string
	for id, f := range r.records {
		if f.Kind != kind || f.FolderName != folderName {
			continue
		}
		if ownerID != nil && f.OwnerID != *ownerID {
			continue
		}
		refs = append(refs, f.BlobRef)
		delete(r.records, id)
	}
	return refs, nil
}

func (r *memFileRepo) CountByOwner(_ context.Context, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, f := range r.records {
		if f.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (r *memFileRepo) DeleteByOwner(_ context.Context, ownerID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []string
	for id, f := range r.records {
		if f.OwnerID == ownerID {
			refs = append(refs, f.BlobRef)
			delete(r.records, id)
		}
	}
	return refs, nil
}

func (r *memFileRepo) WithTx(_ repository.DBTX) repository.FileRepository { return r }

var _ repository.FileRepository = (*memFileRepo)(nil)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	files *memFileRepo
}

func newMemUserRepo(files *memFileRepo) *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User), files: files}
}

func (r *memUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	u.CreatedAt = time.Now().UTC()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) ListWithFileCounts(ctx context.Context) ([]*model.UserFileCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.UserFileCount
	for _, u := range r.users {
		count, _ := r.files.CountByOwner(ctx, u.ID)
		result = append(result, &model.UserFileCount{
			ID:         u.ID,
			Name:       u.Name,
			Email:      u.Email,
			IsAdmin:    u.IsAdmin,
			TotalFiles: count,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) WithTx(_ repository.DBTX) repository.UserRepository { return r }

var _ repository.UserRepository = (*memUserRepo)(nil)

// memTxRunner выполняет fn без реальной транзакции.
type memTxRunner struct{}

func (memTxRunner) RunInTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// okChecker — заглушка проверки готовности зависимости.
type okChecker struct{}

func (okChecker) CheckReady() (string, string) { return "ok", "" }

// --- Сборка тестового API ---

type testEnv struct {
	router *chi.Mux
	users  *memUserRepo
	files  *memFileRepo
	blobs  *blobstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New() ошибка: %v", err)
	}

	fileRepo := newMemFileRepo()
	userRepo := newMemUserRepo(fileRepo)

	folderSvc := service.NewFolderService(fileRepo, blobs, 16, time.Minute, logger)
	uploadSvc := service.NewUploadService(fileRepo, blobs, folderSvc, 1<<20, logger)
	fileSvc := service.NewFileService(fileRepo, blobs, folderSvc, logger)
	downloadSvc := service.NewDownloadService(fileRepo, blobs, logger)
	adminSvc := service.NewAdminService(userRepo, fileRepo, blobs, memTxRunner{}, folderSvc, logger)
	authSvc := service.NewAuthService(userRepo, "server-test-secret-0123456789abcdef", time.Hour, logger)

	h := Handlers{
		Auth:    handlers.NewAuthHandler(authSvc, logger),
		Files:   handlers.NewFilesHandler(uploadSvc, fileSvc, downloadSvc, logger),
		Folders: handlers.NewFoldersHandler(folderSvc, logger),
		Admin:   handlers.NewAdminHandler(adminSvc, logger),
		Health:  handlers.NewHealthHandler(okChecker{}, blobs),
	}

	return &testEnv{
		router: NewRouter(logger, h, middleware.NewJWTAuth(authSvc)),
		users:  userRepo,
		files:  fileRepo,
		blobs:  blobs,
	}
}

// do выполняет запрос против тестового router'а.
func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// doJSON выполняет запрос с JSON-телом.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() ошибка: %v", err)
	}
	return e.do(t, method, path, token, bytes.NewReader(data), "application/json")
}

// signupAndLogin регистрирует пользователя и возвращает его ID и токен.
func (e *testEnv) signupAndLogin(t *testing.T, name, email, password string) (string, string) {
	t.Helper()

	w := e.doJSON(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: код %d, тело: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}

	w = e.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: код %d, тело: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	return created.ID, resp.Token
}

// multipartUpload собирает multipart-тело запроса загрузки.
func multipartUpload(t *testing.T, kind, category, folderName string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	_ = mw.WriteField("kind", kind)
	if category != "" {
		_ = mw.WriteField("category", category)
	}
	if folderName != "" {
		_ = mw.WriteField("folderName", folderName)
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile() ошибка: %v", err)
		}
		if _, err := io.Copy(part, strings.NewReader(content)); err != nil {
			t.Fatalf("Copy() ошибка: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() ошибка: %v", err)
	}
	return buf, mw.FormDataContentType()
}

// --- Тесты ---

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health/live", "", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("/health/live: код %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/health/ready", "", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("/health/ready: код %d, тело: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/metrics", "", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("/metrics: код %d", w.Code)
	}
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// Регистрация
	w := env.doJSON(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ivan", "email": "ivan@example.com", "password": "password1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: код %d, тело: %s", w.Code, w.Body.String())
	}

	// Дубликат email
	w = env.doJSON(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Clone", "email": "ivan@example.com", "password": "password2",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("повторный signup: код %d, хотели 409", w.Code)
	}

	// Невалидное тело
	w = env.do(t, http.MethodPost, "/api/v1/auth/signup", "", strings.NewReader("{broken"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("signup с мусорным телом: код %d, хотели 400", w.Code)
	}

	// Вход
	w = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ivan@example.com", "password": "password1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: код %d, тело: %s", w.Code, w.Body.String())
	}

	// Неверный пароль
	w = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ivan@example.com", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("login с неверным паролем: код %d, хотели 401", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/files?kind=catalogue", "", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("без токена: код %d, хотели 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files?kind=catalogue", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w2 := httptest.NewRecorder()
	env.router.ServeHTTP(w2, req)
	if w2.Code != http.StatusUnauthorized {
		t.Errorf("со схемой Basic: код %d, хотели 401", w2.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/files?kind=catalogue", "garbage.token.here", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("с мусорным токеном: код %d, хотели 401", w.Code)
	}
}

func TestFileLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signupAndLogin(t, "Ivan", "ivan@example.com", "password1")

	// Загрузка двух файлов
	body, contentType := multipartUpload(t, "catalogue", "Mechanical", "Projects", map[string]string{
		"pump.pdf":  "pump drawing",
		"valve.pdf": "valve drawing",
	})
	w := env.do(t, http.MethodPost, "/api/v1/files/upload", token, body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: код %d, тело: %s", w.Code, w.Body.String())
	}

	var uploadResp struct {
		Uploaded []struct {
			ID       string `json:"id"`
			FileName string `json:"fileName"`
		} `json:"uploaded"`
		Failed []any `json:"failed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &uploadResp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if len(uploadResp.Uploaded) != 2 || len(uploadResp.Failed) != 0 {
		t.Fatalf("uploaded=%d failed=%d, хотели 2/0", len(uploadResp.Uploaded), len(uploadResp.Failed))
	}

	var pumpID string
	for _, u := range uploadResp.Uploaded {
		if u.FileName == "pump.pdf" {
			pumpID = u.ID
		}
	}
	if pumpID == "" {
		t.Fatal("pump.pdf отсутствует в ответе загрузки")
	}

	// Список
	w = env.do(t, http.MethodGet, "/api/v1/files?kind=catalogue", token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: код %d", w.Code)
	}
	var list []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("list вернул %d записей, хотели 2", len(list))
	}

	// Скачивание
	w = env.do(t, http.MethodGet, "/api/v1/files/"+pumpID+"/download?kind=catalogue", token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("download: код %d", w.Code)
	}
	if w.Body.String() != "pump drawing" {
		t.Errorf("download вернул %q", w.Body.String())
	}

	// Переименование
	w = env.doJSON(t, http.MethodPut, "/api/v1/files/"+pumpID+"/rename", token, map[string]string{
		"kind": "catalogue", "newName": "pump-rev2.pdf",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("rename: код %d, тело: %s", w.Code, w.Body.String())
	}
	var renamed struct {
		FileName string `json:"fileName"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &renamed); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if renamed.FileName != "pump-rev2.pdf" {
		t.Errorf("fileName = %q", renamed.FileName)
	}

	// Пустое имя — 400
	w = env.doJSON(t, http.MethodPut, "/api/v1/files/"+pumpID+"/rename", token, map[string]string{
		"kind": "catalogue", "newName": "  ",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("rename с пустым именем: код %d, хотели 400", w.Code)
	}

	// Удаление
	w = env.do(t, http.MethodDelete, "/api/v1/files/"+pumpID+"?kind=catalogue", token, nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: код %d", w.Code)
	}

	// Повторное удаление — 404
	w = env.do(t, http.MethodDelete, "/api/v1/files/"+pumpID+"?kind=catalogue", token, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("повторный delete: код %d, хотели 404", w.Code)
	}
}

func TestFileOwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.signupAndLogin(t, "Owner", "owner@example.com", "password1")
	_, otherToken := env.signupAndLogin(t, "Other", "other@example.com", "password1")

	body, contentType := multipartUpload(t, "specification", "", "", map[string]string{
		"private.pdf": "secret",
	})
	w := env.do(t, http.MethodPost, "/api/v1/files/upload", ownerToken, body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: код %d", w.Code)
	}
	var uploadResp struct {
		Uploaded []struct {
			ID string `json:"id"`
		} `json:"uploaded"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &uploadResp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	fileID := uploadResp.Uploaded[0].ID

	// Чужой пользователь не может скачать файл, владелец — может
	w = env.do(t, http.MethodGet, "/api/v1/files/"+fileID+"/download?kind=specification", otherToken, nil, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("чужой download: код %d, хотели 403", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/files/"+fileID+"/download?kind=specification", ownerToken, nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "secret" {
		t.Errorf("download владельца: код %d, тело %q", w.Code, w.Body.String())
	}

	// Чужой пользователь не может удалить или переименовать файл
	w = env.do(t, http.MethodDelete, "/api/v1/files/"+fileID+"?kind=specification", otherToken, nil, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("чужой delete: код %d, хотели 403", w.Code)
	}
	w = env.doJSON(t, http.MethodPut, "/api/v1/files/"+fileID+"/rename", otherToken, map[string]string{
		"kind": "specification", "newName": "stolen.pdf",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("чужой rename: код %d, хотели 403", w.Code)
	}

	// Чужой пользователь не видит файл в своём списке
	w = env.do(t, http.MethodGet, "/api/v1/files?kind=specification", otherToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: код %d", w.Code)
	}
	var list []any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("чужой list вернул %d записей, хотели 0", len(list))
	}
}

func TestFolderEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signupAndLogin(t, "Ivan", "ivan@example.com", "password1")

	body, contentType := multipartUpload(t, "catalogue", "", "Project X", map[string]string{
		"a.pdf": "aaa",
		"b.pdf": "bbb",
	})
	w := env.do(t, http.MethodPost, "/api/v1/files/upload", token, body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: код %d", w.Code)
	}

	// Вид папок
	w = env.do(t, http.MethodGet, "/api/v1/folders?kind=catalogue", token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("folders: код %d", w.Code)
	}
	var folders []struct {
		FolderName string `json:"folderName"`
		FileCount  int    `json:"fileCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &folders); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if len(folders) != 1 || folders[0].FolderName != "Project X" || folders[0].FileCount != 2 {
		t.Fatalf("folders = %+v", folders)
	}

	// Переименование папки (имя с пробелом в URL)
	escaped := url.PathEscape("Project X")
	w = env.doJSON(t, http.MethodPut, "/api/v1/folders/"+escaped, token, map[string]string{
		"kind": "catalogue", "newFolderName": "Project Y",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("rename folder: код %d, тело: %s", w.Code, w.Body.String())
	}
	var renameResp struct {
		Updated int `json:"updated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &renameResp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if renameResp.Updated != 2 {
		t.Errorf("updated = %d, хотели 2", renameResp.Updated)
	}

	// Удаление папки
	w = env.do(t, http.MethodDelete, "/api/v1/folders/"+url.PathEscape("Project Y")+"?kind=catalogue", token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete folder: код %d", w.Code)
	}
	var deleteResp struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &deleteResp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if deleteResp.Deleted != 2 {
		t.Errorf("deleted = %d, хотели 2", deleteResp.Deleted)
	}

	// Папок не осталось
	w = env.do(t, http.MethodGet, "/api/v1/folders?kind=catalogue", token, nil, "")
	var after []any
	if err := json.Unmarshal(w.Body.Bytes(), &after); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if len(after) != 0 {
		t.Errorf("после удаления осталось %d папок", len(after))
	}
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	adminID, _ := env.signupAndLogin(t, "Admin", "admin@example.com", "password1")
	userID, userToken := env.signupAndLogin(t, "User", "user@example.com", "password1")

	// Обычному пользователю админские endpoints недоступны
	w := env.do(t, http.MethodGet, "/api/v1/admin/users", userToken, nil, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("admin/users без роли: код %d, хотели 403", w.Code)
	}

	// Назначаем роль администратора напрямую в хранилище и перелогиниваемся
	env.users.mu.Lock()
	env.users.users[adminID].IsAdmin = true
	env.users.mu.Unlock()

	w = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "password1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: код %d", w.Code)
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	adminToken := loginResp.Token

	// Файл обычного пользователя (для счётчика и каскада)
	body, contentType := multipartUpload(t, "catalogue", "", "", map[string]string{"doc.pdf": "data"})
	if w := env.do(t, http.MethodPost, "/api/v1/files/upload", userToken, body, contentType); w.Code != http.StatusCreated {
		t.Fatalf("upload: код %d", w.Code)
	}

	// Список пользователей с количеством файлов
	w = env.do(t, http.MethodGet, "/api/v1/admin/users", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin/users: код %d, тело: %s", w.Code, w.Body.String())
	}
	var usersList []struct {
		ID         string `json:"id"`
		TotalFiles int    `json:"totalFiles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &usersList); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if len(usersList) != 2 {
		t.Fatalf("admin/users вернул %d пользователей, хотели 2", len(usersList))
	}
	for _, u := range usersList {
		want := 0
		if u.ID == userID {
			want = 1
		}
		if u.TotalFiles != want {
			t.Errorf("totalFiles(%s) = %d, хотели %d", u.ID, u.TotalFiles, want)
		}
	}

	// Самоудаление запрещено
	w = env.do(t, http.MethodDelete, "/api/v1/admin/users/"+adminID, adminToken, nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("самоудаление: код %d, хотели 400", w.Code)
	}

	// Каскадное удаление пользователя
	w = env.do(t, http.MethodDelete, "/api/v1/admin/users/"+userID, adminToken, nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete user: код %d, тело: %s", w.Code, w.Body.String())
	}
	count, _ := env.files.CountByOwner(context.Background(), userID)
	if count != 0 {
		t.Errorf("после каскада у пользователя осталось %d файлов", count)
	}

	// Повторное удаление — 404
	w = env.do(t, http.MethodDelete, "/api/v1/admin/users/"+userID, adminToken, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("повторный delete user: код %d, хотели 404", w.Code)
	}
}

func TestFolderOwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	_, tokenA := env.signupAndLogin(t, "Anna", "anna@example.com", "password1")
	_, tokenB := env.signupAndLogin(t, "Boris", "boris@example.com", "password1")

	// Оба пользователя загружают в папку с одним именем
	body, contentType := multipartUpload(t, "catalogue", "", "Shared", map[string]string{
		"a1.pdf": "anna-1",
		"a2.pdf": "anna-2",
	})
	if w := env.do(t, http.MethodPost, "/api/v1/files/upload", tokenA, body, contentType); w.Code != http.StatusCreated {
		t.Fatalf("upload A: код %d", w.Code)
	}
	body, contentType = multipartUpload(t, "catalogue", "", "Shared", map[string]string{
		"b1.pdf": "boris-1",
	})
	if w := env.do(t, http.MethodPost, "/api/v1/files/upload", tokenB, body, contentType); w.Code != http.StatusCreated {
		t.Fatalf("upload B: код %d", w.Code)
	}

	// Каждый видит только свою часть папки
	w := env.do(t, http.MethodGet, "/api/v1/folders?kind=catalogue", tokenB, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("folders B: код %d", w.Code)
	}
	var folders []struct {
		FolderName string `json:"folderName"`
		FileCount  int    `json:"fileCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &folders); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if len(folders) != 1 || folders[0].FileCount != 1 {
		t.Fatalf("папки B = %+v, хотели одну папку с 1 файлом", folders)
	}

	// Переименование папки пользователем B не трогает файлы A
	w = env.doJSON(t, http.MethodPut, "/api/v1/folders/Shared", tokenB, map[string]string{
		"kind": "catalogue", "newFolderName": "Hijacked",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("rename B: код %d", w.Code)
	}
	var renameResp struct {
		Updated int `json:"updated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &renameResp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if renameResp.Updated != 1 {
		t.Errorf("rename B updated = %d, хотели 1", renameResp.Updated)
	}

	// Удаление папки пользователем B затрагивает только его файлы
	w = env.do(t, http.MethodDelete, "/api/v1/folders/Hijacked?kind=catalogue", tokenB, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete B: код %d", w.Code)
	}
	var deleteResp struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &deleteResp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if deleteResp.Deleted != 1 {
		t.Errorf("delete B = %d, хотели 1", deleteResp.Deleted)
	}

	// Файлы A целы и остались в исходной папке
	w = env.do(t, http.MethodGet, "/api/v1/files?kind=catalogue", tokenA, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list A: код %d", w.Code)
	}
	var list []struct {
		FolderName string `json:"folderName"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("у A осталось %d файлов, хотели 2", len(list))
	}
	for _, f := range list {
		if f.FolderName != "Shared" {
			t.Errorf("файл A переехал в папку %q", f.FolderName)
		}
	}
}

func TestUploadBodyLimit(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signupAndLogin(t, "Ivan", "ivan@example.com", "password1")

	// Лимит тела как в боевом сервере, но маленький
	limited := http.MaxBytesHandler(env.router, 256)

	body, contentType := multipartUpload(t, "catalogue", "", "", map[string]string{
		"big.bin": strings.Repeat("x", 4096),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	limited.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("код %d, хотели 413", w.Code)
	}
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() ошибка: %v, тело: %s", err, w.Body.String())
	}
	if resp.Error.Code != "FILE_TOO_LARGE" {
		t.Errorf("код ошибки %q, хотели FILE_TOO_LARGE", resp.Error.Code)
	}
}
