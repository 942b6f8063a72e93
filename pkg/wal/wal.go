package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀)
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 帳務資料預設使用
	FileModePrivate fs.FileMode = 0600
)

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
// 每筆寫入都會 fsync，寫入失敗時會截斷回寫入前的大小，避免留下半筆資料
type WAL struct {
	file *os.File
	mu   sync.Mutex
	size int64
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat wal %s: %w", path, err)
	}
	return &WAL{file: file, size: info.Size()}, nil
}

// Append 寫入一筆資料並刷入硬碟
func (w *WAL) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode wal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(line)
	if err == nil {
		err = w.file.Sync()
	}
	if err != nil {
		// 寫一半的資料要截掉，否則之後的紀錄會接在殘缺的行後面
		if n > 0 {
			if terr := w.file.Truncate(w.size); terr != nil {
				return errors.Join(fmt.Errorf("write wal: %w", err), fmt.Errorf("truncate wal: %w", terr))
			}
		}
		return fmt.Errorf("write wal: %w", err)
	}
	w.size += int64(n)
	return nil
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll 依序讀取所有資料
// callback 接收單筆 JSON，避免一次將所有資料載入記憶體
// 檔案尾端若有當機造成的殘缺紀錄，會被截斷並忽略
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		good := decoder.InputOffset()
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				if terr := w.file.Truncate(good); terr != nil {
					return fmt.Errorf("truncate torn wal tail: %w", terr)
				}
				w.size = good
				break
			}
			return fmt.Errorf("decode wal record at offset %d: %w", good, err)
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}
