package donations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	anaLine   = "1,Ana,111,1990-01-01,A+,450"
	brunoLine = "2,Bruno,222,1985-05-05,O-,500"
	carlaLine = "3,Carla,333,2000-02-02,B+,470"
)

var carla = Record{ID: 3, Name: "Carla", TaxID: "333", BirthDate: "2000-02-02", BloodType: "B+", VolumeML: 470}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doacoes.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func assertOnlyFile(t *testing.T, path string) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "unexpected leftover files next to %s", path)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

type failingRenameFS struct {
	OSFileSystem
}

func (failingRenameFS) Rename(oldpath, newpath string) error {
	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errors.New("simulated")}
}

func TestRecordString(t *testing.T) {
	assert.Equal(t, carlaLine, carla.String())
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    int
		wantErr bool
	}{
		{name: "plain", line: anaLine, want: 1},
		{name: "padded", line: "  42 ,x,y", want: 42},
		{name: "single column", line: "7", want: 7},
		{name: "negative", line: "-3,x", want: -3},
		{name: "text", line: "abc,x", wantErr: true},
		{name: "empty id", line: ",x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseID(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplay(t *testing.T) {
	store := NewStore(nil)

	t.Run("lines in order", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n"+brunoLine+"\n")
		lines, err := store.Display(path)
		require.NoError(t, err)
		assert.Equal(t, []string{anaLine, brunoLine}, lines)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFixture(t, "")
		lines, err := store.Display(path)
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.Display(filepath.Join(t.TempDir(), "missing.csv"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRead)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestAppend(t *testing.T) {
	store := NewStore(nil)

	t.Run("after last line without newline", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n"+brunoLine)
		require.NoError(t, store.Append(path, carla))

		lines, err := store.Display(path)
		require.NoError(t, err)
		assert.Equal(t, []string{anaLine, brunoLine, carlaLine}, lines)
	})

	t.Run("after trailing newline", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n"+brunoLine+"\n")
		require.NoError(t, store.Append(path, carla))
		assert.Equal(t, anaLine+"\n"+brunoLine+"\n"+carlaLine+"\n", readFixture(t, path))
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFixture(t, "")
		require.NoError(t, store.Append(path, carla))
		assert.Equal(t, carlaLine+"\n", readFixture(t, path))
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.csv")
		err := store.Append(path, carla)
		assert.ErrorIs(t, err, ErrRead)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("delete then append", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n"+brunoLine)
		_, err := store.Delete(path, 1)
		require.NoError(t, err)
		require.NoError(t, store.Append(path, carla))

		lines, err := store.Display(path)
		require.NoError(t, err)
		assert.Equal(t, []string{brunoLine, carlaLine}, lines)
	})
}

func TestDelete(t *testing.T) {
	store := NewStore(nil)

	t.Run("removes matching record", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n"+brunoLine+"\n")
		removed, err := store.Delete(path, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.Equal(t, brunoLine+"\n", readFixture(t, path))
		assertOnlyFile(t, path)
	})

	t.Run("second delete is a no-op", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n"+brunoLine+"\n")
		_, err := store.Delete(path, 1)
		require.NoError(t, err)
		before := readFixture(t, path)

		removed, err := store.Delete(path, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
		assert.Equal(t, before, readFixture(t, path))
	})

	t.Run("removes every duplicate and keeps order", func(t *testing.T) {
		path := writeFixture(t, "5,a\n1,b\n5,c\n2,d\n5,e\n3,f")
		removed, err := store.Delete(path, 5)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)
		assert.Equal(t, "1,b\n2,d\n3,f\n", readFixture(t, path))
	})

	t.Run("nonexistent id keeps records", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n"+brunoLine)
		removed, err := store.Delete(path, 99)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)

		lines, err := store.Display(path)
		require.NoError(t, err)
		assert.Equal(t, []string{anaLine, brunoLine}, lines)
	})

	t.Run("trims id column", func(t *testing.T) {
		path := writeFixture(t, " 1 ,Ana\n2,Bruno\n")
		removed, err := store.Delete(path, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.Equal(t, "2,Bruno\n", readFixture(t, path))
	})

	t.Run("keeps blank lines", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n\n"+brunoLine+"\n")
		_, err := store.Delete(path, 2)
		require.NoError(t, err)
		assert.Equal(t, anaLine+"\n\n", readFixture(t, path))
	})

	t.Run("malformed id leaves file untouched", func(t *testing.T) {
		content := anaLine + "\nxyz,Broken\n" + brunoLine + "\n"
		path := writeFixture(t, content)
		removed, err := store.Delete(path, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFormat)
		assert.Contains(t, err.Error(), "line 2")
		assert.Equal(t, 0, removed)
		assert.Equal(t, content, readFixture(t, path))
		assertOnlyFile(t, path)
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.csv")
		_, err := store.Delete(path, 1)
		assert.ErrorIs(t, err, ErrRead)
	})

	t.Run("preserves permissions", func(t *testing.T) {
		path := writeFixture(t, anaLine+"\n")
		require.NoError(t, os.Chmod(path, 0o640))
		_, err := store.Delete(path, 1)
		require.NoError(t, err)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	})
}

func TestDeleteRenameFailure(t *testing.T) {
	store := NewStore(nil)
	store.SetFileSystem(failingRenameFS{})

	content := anaLine + "\n" + brunoLine + "\n"
	path := writeFixture(t, content)

	_, err := store.Delete(path, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
	assert.Equal(t, content, readFixture(t, path))
	assertOnlyFile(t, path)
}
