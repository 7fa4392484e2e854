package reference

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const recordVersionV1 = 1

var errRecordTooLong = errors.New("reference: record field too long")

type account struct {
	UserID       string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    int64
}

type registration struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Prepared     bool
	CodeHash     [32]byte
	CreatedAt    int64
}

type sessionRecord struct {
	SessionID string
	UserID    string
	Active    bool
	CreatedAt int64
	ExpiresAt int64
}

type recordWriter struct {
	buf bytes.Buffer
	err error
}

func newRecordWriter() *recordWriter {
	w := &recordWriter{}
	w.buf.WriteByte(recordVersionV1)
	return w
}

func (w *recordWriter) str(s string) {
	if w.err != nil {
		return
	}
	if len(s) > 0xFFFF {
		w.err = errRecordTooLong
		return
	}
	_ = binary.Write(&w.buf, binary.BigEndian, uint16(len(s)))
	w.buf.WriteString(s)
}

func (w *recordWriter) i64(v int64) {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
}

func (w *recordWriter) flag(v bool) {
	if v {
		w.buf.WriteByte(1)
		return
	}
	w.buf.WriteByte(0)
}

func (w *recordWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

type recordReader struct {
	r   *bytes.Reader
	err error
}

func newRecordReader(data []byte) *recordReader {
	rr := &recordReader{r: bytes.NewReader(data)}
	version, err := rr.r.ReadByte()
	if err != nil {
		rr.err = err
	} else if version != recordVersionV1 {
		rr.err = fmt.Errorf("reference: unsupported record version %d", version)
	}
	return rr
}

func (rr *recordReader) str() string {
	if rr.err != nil {
		return ""
	}
	var n uint16
	if rr.err = binary.Read(rr.r, binary.BigEndian, &n); rr.err != nil {
		return ""
	}
	b := make([]byte, n)
	if _, rr.err = io.ReadFull(rr.r, b); rr.err != nil {
		return ""
	}
	return string(b)
}

func (rr *recordReader) i64() int64 {
	var v int64
	if rr.err == nil {
		rr.err = binary.Read(rr.r, binary.BigEndian, &v)
	}
	return v
}

func (rr *recordReader) flag() bool {
	if rr.err != nil {
		return false
	}
	b, err := rr.r.ReadByte()
	rr.err = err
	return b == 1
}

func (rr *recordReader) fixed(dst []byte) {
	if rr.err == nil {
		_, rr.err = io.ReadFull(rr.r, dst)
	}
}

func (rr *recordReader) done() error {
	if rr.err != nil {
		return rr.err
	}
	if rr.r.Len() != 0 {
		return errors.New("reference: trailing bytes in record")
	}
	return nil
}

func encodeAccount(a *account) ([]byte, error) {
	w := newRecordWriter()
	w.str(a.UserID)
	w.str(a.Email)
	w.str(a.FirstName)
	w.str(a.LastName)
	w.str(a.PasswordHash)
	w.i64(a.CreatedAt)
	return w.bytes()
}

func decodeAccount(data []byte) (*account, error) {
	rr := newRecordReader(data)
	a := &account{
		UserID:       rr.str(),
		Email:        rr.str(),
		FirstName:    rr.str(),
		LastName:     rr.str(),
		PasswordHash: rr.str(),
		CreatedAt:    rr.i64(),
	}
	if err := rr.done(); err != nil {
		return nil, err
	}
	return a, nil
}

func encodeRegistration(r *registration) ([]byte, error) {
	w := newRecordWriter()
	w.str(r.ID)
	w.str(r.Email)
	w.str(r.FirstName)
	w.str(r.LastName)
	w.str(r.PasswordHash)
	w.flag(r.Prepared)
	w.buf.Write(r.CodeHash[:])
	w.i64(r.CreatedAt)
	return w.bytes()
}

func decodeRegistration(data []byte) (*registration, error) {
	rr := newRecordReader(data)
	r := &registration{
		ID:           rr.str(),
		Email:        rr.str(),
		FirstName:    rr.str(),
		LastName:     rr.str(),
		PasswordHash: rr.str(),
		Prepared:     rr.flag(),
	}
	rr.fixed(r.CodeHash[:])
	r.CreatedAt = rr.i64()
	if err := rr.done(); err != nil {
		return nil, err
	}
	return r, nil
}

func encodeSession(s *sessionRecord) ([]byte, error) {
	w := newRecordWriter()
	w.str(s.SessionID)
	w.str(s.UserID)
	w.flag(s.Active)
	w.i64(s.CreatedAt)
	w.i64(s.ExpiresAt)
	return w.bytes()
}

func decodeSession(data []byte) (*sessionRecord, error) {
	rr := newRecordReader(data)
	s := &sessionRecord{
		SessionID: rr.str(),
		UserID:    rr.str(),
		Active:    rr.flag(),
		CreatedAt: rr.i64(),
		ExpiresAt: rr.i64(),
	}
	if err := rr.done(); err != nil {
		return nil, err
	}
	return s, nil
}
