package doctemplate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storageFactory opens a fresh, empty storage for one subtest.
type storageFactory func(t *testing.T) TemplateStorage

func storageBackends() map[string]storageFactory {
	return map[string]storageFactory{
		StorageDriverNameMemory: func(t *testing.T) TemplateStorage {
			return NewMemoryStorage()
		},
		StorageDriverNameFilesystem: func(t *testing.T) TemplateStorage {
			s, err := NewFilesystemStorage(filepath.Join(t.TempDir(), "templates"))
			require.NoError(t, err)
			return s
		},
		StorageDriverNameSQLite: func(t *testing.T) TemplateStorage {
			s, err := NewSQLiteStorage(SQLiteConfig{Path: filepath.Join(t.TempDir(), "templates.db")})
			require.NoError(t, err)
			return s
		},
	}
}

func TestTemplateStorage_Backends(t *testing.T) {
	for name, factory := range storageBackends() {
		t.Run(name, func(t *testing.T) {
			runStorageSuite(t, factory)
		})
	}
}

// runStorageSuite checks the behavior every TemplateStorage must share.
func runStorageSuite(t *testing.T, open storageFactory) {
	ctx := context.Background()

	newStorage := func(t *testing.T) TemplateStorage {
		s := open(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("save assigns versions", func(t *testing.T) {
		s := newStorage(t)
		before := time.Now().Add(-time.Second)

		first := &StoredTemplate{
			Name:      "invoice",
			Source:    "v1",
			Metadata:  map[string]string{"owner": "billing"},
			Tags:      []string{"finance"},
			CreatedBy: "lin",
		}
		require.NoError(t, s.Save(ctx, first))
		assert.Equal(t, 1, first.Version)
		assert.NotEmpty(t, first.ID)
		assert.True(t, first.CreatedAt.After(before))

		second := &StoredTemplate{Name: "invoice", Source: "v2"}
		require.NoError(t, s.Save(ctx, second))
		assert.Equal(t, 2, second.Version)
		assert.NotEqual(t, first.ID, second.ID)

		got, err := s.Get(ctx, "invoice")
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Source)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, second.ID, got.ID)

		old, err := s.GetVersion(ctx, "invoice", 1)
		require.NoError(t, err)
		assert.Equal(t, "v1", old.Source)
		assert.Equal(t, "billing", old.Metadata["owner"])
		assert.Equal(t, []string{"finance"}, old.Tags)
		assert.Equal(t, "lin", old.CreatedBy)
		assert.WithinDuration(t, first.CreatedAt, old.CreatedAt, time.Millisecond)

		versions, err := s.ListVersions(ctx, "invoice")
		require.NoError(t, err)
		assert.Equal(t, []int{2, 1}, versions)
	})

	t.Run("returned templates are copies", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.Save(ctx, &StoredTemplate{Name: "a", Source: "x", Tags: []string{"t"}}))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		got.Source = "changed"
		got.Tags[0] = "changed"

		again, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "x", again.Source)
		assert.Equal(t, []string{"t"}, again.Tags)
	})

	t.Run("not found", func(t *testing.T) {
		s := newStorage(t)

		_, err := s.Get(ctx, "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTemplateNotFound))

		_, err = s.GetVersion(ctx, "missing", 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTemplateNotFound))
		assert.Contains(t, err.Error(), ErrMsgVersionNotFound)

		err = s.Delete(ctx, "missing")
		assert.True(t, errors.Is(err, ErrTemplateNotFound))

		exists, err := s.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)

		versions, err := s.ListVersions(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, versions)
	})

	t.Run("invalid names", func(t *testing.T) {
		s := newStorage(t)
		for _, name := range []string{"", "a/b", `a\b`, "..", "x..y"} {
			err := s.Save(ctx, &StoredTemplate{Name: name, Source: "x"})
			require.Error(t, err, name)

			var se *StorageError
			require.True(t, errors.As(err, &se), name)
			assert.Equal(t, ErrMsgInvalidTemplateName, se.Message)
		}
	})

	t.Run("delete removes all versions", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.Save(ctx, &StoredTemplate{Name: "a", Source: "1"}))
		require.NoError(t, s.Save(ctx, &StoredTemplate{Name: "a", Source: "2"}))

		exists, err := s.Exists(ctx, "a")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, s.Delete(ctx, "a"))

		exists, err = s.Exists(ctx, "a")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, s.Save(ctx, &StoredTemplate{Name: "a", Source: "again"}))
		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version, "versions restart after delete")
	})

	t.Run("list", func(t *testing.T) {
		s := newStorage(t)
		seed := []*StoredTemplate{
			{Name: "letter-de", Source: "1", Tags: []string{"letter", "de"}},
			{Name: "letter-de", Source: "2", Tags: []string{"letter", "de"}},
			{Name: "letter-en", Source: "1", Tags: []string{"letter", "en"}},
			{Name: "invoice", Source: "1", Tags: []string{"finance"}},
		}
		for _, tmpl := range seed {
			require.NoError(t, s.Save(ctx, tmpl))
		}

		names := func(list []*StoredTemplate) []string {
			out := make([]string, len(list))
			for i, tmpl := range list {
				out[i] = fmt.Sprintf("%s@%d", tmpl.Name, tmpl.Version)
			}
			return out
		}

		tests := []struct {
			name     string
			query    *TemplateQuery
			expected []string
		}{
			{"nil query", nil, []string{"invoice@1", "letter-de@2", "letter-en@1"}},
			{"all versions", &TemplateQuery{IncludeAllVersions: true},
				[]string{"invoice@1", "letter-de@2", "letter-de@1", "letter-en@1"}},
			{"name prefix", &TemplateQuery{NamePrefix: "letter"}, []string{"letter-de@2", "letter-en@1"}},
			{"tags", &TemplateQuery{Tags: []string{"letter", "en"}}, []string{"letter-en@1"}},
			{"limit", &TemplateQuery{Limit: 2}, []string{"invoice@1", "letter-de@2"}},
			{"offset", &TemplateQuery{Offset: 1, Limit: 1}, []string{"letter-de@2"}},
			{"offset past end", &TemplateQuery{Offset: 10}, []string{}},
			{"no match", &TemplateQuery{NamePrefix: "zzz"}, []string{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				list, err := s.List(ctx, tt.query)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, names(list))
			})
		}
	})

	t.Run("concurrent saves", func(t *testing.T) {
		s := newStorage(t)
		const writers = 8

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Save(ctx, &StoredTemplate{Name: "shared", Source: fmt.Sprint(i)})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		versions, err := s.ListVersions(ctx, "shared")
		require.NoError(t, err)
		assert.Len(t, versions, writers)
		assert.Equal(t, writers, versions[0])
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStorage(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Get(cancelled, "a")
		assert.True(t, errors.Is(err, context.Canceled))
		err = s.Save(cancelled, &StoredTemplate{Name: "a"})
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("closed", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Close())

		_, err := s.Get(ctx, "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgStorageClosed)

		err = s.Save(ctx, &StoredTemplate{Name: "a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgStorageClosed)
	})
}

func TestOpenStorage(t *testing.T) {
	s, err := OpenStorage(StorageDriverNameMemory, "")
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &MemoryStorage{}, s)

	root := t.TempDir()
	s, err = OpenStorage(StorageDriverNameFilesystem, root)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, root, s.(*FilesystemStorage).Root())

	_, err = OpenStorage("nope", "")
	require.Error(t, err)
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrMsgUnknownDriver, se.Message)
	assert.Equal(t, "nope", se.Name)
}

type stubDriver struct{ storage TemplateStorage }

func (d stubDriver) Open(string) (TemplateStorage, error) { return d.storage, nil }

func TestRegisterStorageDriver(t *testing.T) {
	mem := NewMemoryStorage()
	RegisterStorageDriver("stub-register", stubDriver{storage: mem})

	s, err := OpenStorage("stub-register", "")
	require.NoError(t, err)
	assert.Same(t, mem, s)

	assert.Panics(t, func() { RegisterStorageDriver("stub-register", stubDriver{}) })
	assert.Panics(t, func() { RegisterStorageDriver("stub-nil", nil) })

	drivers := ListStorageDrivers()
	assert.Subset(t, drivers, []string{
		StorageDriverNameFilesystem,
		StorageDriverNameMemory,
		StorageDriverNamePostgres,
		StorageDriverNameSQLite,
		"stub-register",
	})
	assert.IsNonDecreasing(t, drivers)
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name     string
		err      *StorageError
		expected string
	}{
		{"message only", &StorageError{Message: ErrMsgStorageClosed}, "storage is closed"},
		{"with name", &StorageError{Message: ErrMsgWriteTemplate, Name: "a"}, "writing template file failed: a"},
		{"with version", &StorageError{Message: ErrMsgWriteTemplate, Name: "a", Version: 3, Cause: cause},
			"writing template file failed: a v3: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}

	assert.True(t, errors.Is(&StorageError{Message: "x", Cause: cause}, cause))
}

func TestFilesystemStorage_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFilesystemStorage(root)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, &StoredTemplate{Name: "letter", Source: "x"}))
	assert.FileExists(t, filepath.Join(root, "letter", "v1.json"))

	_, err = NewFilesystemStorage("")
	require.Error(t, err)
}

func TestVersionFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		version  int
		ok       bool
	}{
		{"v1.json", 1, true},
		{"v42.json", 42, true},
		{"v0.json", 0, false},
		{"v-1.json", 0, false},
		{"1.json", 0, false},
		{"v1.txt", 0, false},
		{"vx.json", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			v, ok := versionFromFilename(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, v)
		})
	}
}

func TestSQLiteStorage(t *testing.T) {
	ctx := context.Background()

	_, err := NewSQLiteStorage(SQLiteConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMsgEmptySQLitePath)

	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := NewSQLiteStorage(SQLiteConfig{Path: path})
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Save(ctx, &StoredTemplate{Name: "kept", Source: "x"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is a no-op")

	reopened, err := OpenStorage(StorageDriverNameSQLite, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Source)
}
