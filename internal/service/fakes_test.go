package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
)

// fakeFileRepo — in-memory реализация repository.FileRepository для unit-тестов.
type fakeFileRepo struct {
	mu      sync.Mutex
	records map[string]*model.FileRecord

	// createErr — если задана, Create возвращает её (для теста компенсации)
	createErr error
	// deleteByOwnerErr — если задана, DeleteByOwner возвращает её
	deleteByOwnerErr error
	// listCalls — счётчик обращений к List/ListAllKinds (для теста кэша)
	listCalls int
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{records: make(map[string]*model.FileRecord)}
}

func (r *fakeFileRepo) Create(_ context.Context, f *model.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *f
	r.records[f.ID] = &cp
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, kind model.Kind, id string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Kind != kind {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// sortedByUpload возвращает записи в порядке uploaded_at DESC, id.
func sortedByUpload(records []*model.FileRecord) []*model.FileRecord {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].UploadedAt.After(records[j].UploadedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

func (r *fakeFileRepo) List(_ context.Context, kind model.Kind, filters repository.FileListFilters) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++

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
	return sortedByUpload(result), nil
}

func (r *fakeFileRepo) ListAllKinds(_ context.Context, ownerID *string) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++

	var result []*model.FileRecord
	for _, f := range r.records {
		if ownerID != nil && f.OwnerID != *ownerID {
			continue
		}
		cp := *f
		result = append(result, &cp)
	}
	return sortedByUpload(result), nil
}

func (r *fakeFileRepo) Rename(_ context.Context, kind model.Kind, id, newName string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Kind != kind {
		return nil, repository.ErrNotFound
	}
	f.FileName = newName
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) Delete(_ context.Context, kind model.Kind, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Kind != kind {
		return "", repository.ErrNotFound
	}
	delete(r.records, id)
	return f.BlobRef, nil
}

func (r *fakeFileRepo) RenameFolder(_ context.Context, kind model.Kind, oldName, newName string, ownerID *string) (int, error) {
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

func (r *fakeFileRepo) DeleteByFolder(_ context.Context, kind model.Kind, folderName string, ownerID *string) ([]string, error) {
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

func (r *fakeFileRepo) CountByOwner(_ context.Context, ownerID string) (int, error) {
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

func (r *fakeFileRepo) DeleteByOwner(_ context.Context, ownerID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteByOwnerErr != nil {
		return nil, r.deleteByOwnerErr
	}
	var refs []string
	for id, f := range r.records {
		if f.OwnerID == ownerID {
			refs = append(refs, f.BlobRef)
			delete(r.records, id)
		}
	}
	return refs, nil
}

func (r *fakeFileRepo) WithTx(_ repository.DBTX) repository.FileRepository { return r }

var _ repository.FileRepository = (*fakeFileRepo)(nil)

// fakeUserRepo — in-memory реализация repository.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
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

func (r *fakeUserRepo) ListWithFileCounts(_ context.Context) ([]*model.UserFileCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.UserFileCount
	for _, u := range r.users {
		result = append(result, &model.UserFileCount{
			ID:      u.ID,
			Name:    u.Name,
			Email:   u.Email,
			IsAdmin: u.IsAdmin,
		})
	}
	return result, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) WithTx(_ repository.DBTX) repository.UserRepository { return r }

var _ repository.UserRepository = (*fakeUserRepo)(nil)

// fakeTxRunner выполняет fn без реальной транзакции:
// fakes атомарны сами по себе.
type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// fakeInvalidator — счётчик вызовов инвалидации кэша папок.
type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func (f *fakeInvalidator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// errCreateRegistry — сигнальная ошибка отказа реестра в тестах компенсации.
var errCreateRegistry = errors.New("реестр недоступен")
