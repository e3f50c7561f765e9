package sessionstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"syscall"

	"github.com/google/uuid"
)

// The WAL footer format mirrors the ticket store's: an 8-byte magic, the
// body length (and its bitwise complement, as a corruption tripwire), and a
// CRC32C checksum (with its complement), all little-endian. A session's
// summary is appended as one JSON line; Open() replays every committed line
// into SQLite, then truncates the WAL.
const (
	walMagic      = "PMWAL001"
	walFooterSize = 32
)

var walCRC32C = crc32.MakeTable(crc32.Castagnoli)

type walOp struct {
	SessionID string `json:"session_id"`
	Record    Record `json:"record"`
}

type walState uint8

const (
	walEmpty walState = iota
	walUncommitted
	walCommitted
)

// appendWAL writes rec as a single committed WAL entry: the JSONL body
// followed by a footer covering the whole file (prior entries included),
// so a single fsync'd file always holds exactly one pending-or-replayed
// generation of appends.
func appendWAL(f *os.File, existing []byte, rec Record) error {
	op := walOp{SessionID: rec.SessionID, Record: rec}

	line, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal wal op: %w", err)
	}

	body := make([]byte, 0, len(existing)+len(line)+1)
	body = append(body, existing...)
	body = append(body, line...)
	body = append(body, '\n')

	footer := buildFooter(body)

	_, err = f.WriteAt(append(body, footer...), 0)
	if err != nil {
		return fmt.Errorf("write wal: %w", err)
	}

	fd := int(f.Fd())

	err = syscall.Ftruncate(fd, int64(len(body)+len(footer)))
	if err != nil {
		return fmt.Errorf("truncate wal to new length: %w", err)
	}

	return f.Sync()
}

func buildFooter(body []byte) []byte {
	footer := make([]byte, walFooterSize)
	copy(footer[:8], walMagic)

	bodyLen := uint64(len(body))
	binary.LittleEndian.PutUint64(footer[8:16], bodyLen)
	binary.LittleEndian.PutUint64(footer[16:24], ^bodyLen)

	crc := crc32.Checksum(body, walCRC32C)
	binary.LittleEndian.PutUint32(footer[24:28], crc)
	binary.LittleEndian.PutUint32(footer[28:32], ^crc)

	return footer
}

// readWalState inspects the WAL footer and checksum, returning the validated
// body bytes for a committed WAL.
func readWalState(f *os.File) (walState, []byte, error) {
	info, err := f.Stat()
	if err != nil {
		return walEmpty, nil, fmt.Errorf("stat wal: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return walEmpty, nil, nil
	}

	if size < walFooterSize {
		return walUncommitted, nil, nil
	}

	footerBuf := make([]byte, walFooterSize)

	_, err = f.ReadAt(footerBuf, size-walFooterSize)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return walUncommitted, nil, nil
		}

		return walEmpty, nil, fmt.Errorf("read wal footer: %w", err)
	}

	if string(footerBuf[:8]) != walMagic {
		return walUncommitted, nil, nil
	}

	bodyLen := binary.LittleEndian.Uint64(footerBuf[8:16])
	if ^bodyLen != binary.LittleEndian.Uint64(footerBuf[16:24]) {
		return walUncommitted, nil, nil
	}

	crc := binary.LittleEndian.Uint32(footerBuf[24:28])
	if ^crc != binary.LittleEndian.Uint32(footerBuf[28:32]) {
		return walUncommitted, nil, nil
	}

	if bodyLen > math.MaxInt64 || int64(bodyLen) > size-walFooterSize {
		return walUncommitted, nil, nil
	}

	body := make([]byte, bodyLen)

	_, err = f.ReadAt(body, 0)
	if err != nil {
		return walEmpty, nil, fmt.Errorf("read wal body: %w", err)
	}

	checksum := crc32.Checksum(body, walCRC32C)
	if checksum != crc {
		return walCommitted, nil, fmt.Errorf("wal checksum mismatch (expected %08x got %08x): %w", crc, checksum, ErrWALCorrupt)
	}

	return walCommitted, body, nil
}

// truncateWal clears the WAL and fsyncs so the next open sees an empty log.
func truncateWal(f *os.File) error {
	err := syscall.Ftruncate(int(f.Fd()), 0)
	if err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}

	return f.Sync()
}

// decodeWalOps parses a committed WAL body into validated ops, in append order.
func decodeWalOps(body []byte) ([]walOp, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	ops := make([]walOp, 0)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var op walOp

		err := json.Unmarshal(line, &op)
		if err != nil {
			return nil, fmt.Errorf("parse wal line: %w: %w", ErrWALReplay, err)
		}

		if _, err := uuid.Parse(op.SessionID); err != nil {
			return nil, fmt.Errorf("validate wal session id %q: %w: %w", op.SessionID, ErrWALReplay, err)
		}

		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan wal: %w: %w", ErrWALReplay, err)
	}

	return ops, nil
}
