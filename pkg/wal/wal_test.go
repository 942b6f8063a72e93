package wal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Seq  int    `json:"seq"`
	Note string `json:"note"`
}

func readRecords(t *testing.T, w *WAL) []record {
	t.Helper()
	var out []record
	err := w.ReadAll(func(raw []byte) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestAppendAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := NewWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(record{Seq: 1, Note: "first"}))
	require.NoError(t, w.Append(record{Seq: 2, Note: "second"}))
	require.NoError(t, w.Close())

	w, err = NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	got := readRecords(t, w)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Seq)
	assert.Equal(t, "second", got[1].Note)

	// 讀完之後繼續追加
	require.NoError(t, w.Append(record{Seq: 3}))
	assert.Len(t, readRecords(t, w), 3)
}

func TestReadAllTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	content := `{"seq":1,"note":"ok"}` + "\n" + `{"seq":2,"no`
	require.NoError(t, os.WriteFile(path, []byte(content), FileModePrivate))

	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	got := readRecords(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Seq)

	require.NoError(t, w.Append(record{Seq: 2, Note: "again"}))
	got = readRecords(t, w)
	require.Len(t, got, 2)
	assert.Equal(t, "again", got[1].Note)
}

func TestReadAllRejectsCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	content := `{"seq":1}` + "\n" + `not-json` + "\n" + `{"seq":3}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), FileModePrivate))

	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	err = w.ReadAll(func([]byte) error { return nil })
	require.Error(t, err)
}

func TestAppendUnencodable(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "wal.log"))
	require.NoError(t, err)
	defer w.Close()

	require.Error(t, w.Append(make(chan int)))
	assert.Empty(t, readRecords(t, w))
}
