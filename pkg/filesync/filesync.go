// Package filesync implements the adb filesync sub-protocol carried by the
// sync: service: STAT, LIST, SEND, RECV and friends,
// multiplexed over a single already-open adbproto.Stream.
package filesync

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"adbhost/internal/adberr"
	"adbhost/pkg/adbproto"
)

// MaxPushData is the largest payload a single filesync DATA packet carries,
// smaller than adbproto.MaxAdbData to leave room for the filesync header
// adb wraps each chunk in.
const MaxPushData = 2 * 1024

// DefaultPushMode is the mode applied to a pushed file when the caller
// doesn't specify one: a regular file, owner and group read/write/execute.
const DefaultPushMode = 0o100770 // S_IFREG | S_IRWXU | S_IRWXG

// Tag identifies a filesync sub-command, wire-packed the same way adbproto
// packs its four-character commands.
type Tag uint32

var (
	tagStat = filesyncTag("STAT")
	tagList = filesyncTag("LIST")
	tagSend = filesyncTag("SEND")
	tagRecv = filesyncTag("RECV")
	tagDent = filesyncTag("DENT")
	tagDone = filesyncTag("DONE")
	tagData = filesyncTag("DATA")
	tagOkay = filesyncTag("OKAY")
	tagFail = filesyncTag("FAIL")
	tagQuit = filesyncTag("QUIT")
)

var tagNames = map[Tag]string{}

func filesyncTag(s string) Tag {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(s[i]) << (8 * i)
	}
	t := Tag(v)
	tagNames[t] = s
	return t
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return fmt.Sprintf("0x%08x", uint32(t))
}

// DeviceFile is one entry returned by List.
type DeviceFile struct {
	Filename string
	Mode     uint32
	Size     uint32
	Mtime    uint32
}

// Connection multiplexes the filesync sub-protocol over a single
// adbproto.Stream, buffering outgoing packets the way real adb does — all
// filesync commands get a response, so buffered writes are always flushed
// by the time a caller needs to read one.
type Connection struct {
	stream     *adbproto.Stream
	sendBuffer []byte
	recvBuffer []byte
}

// NewConnection wraps an already-open Stream (typically opened against the
// "sync:" service).
func NewConnection(stream *adbproto.Stream) *Connection {
	return &Connection{stream: stream}
}

// send buffers a filesync packet (8-byte header: tag, size; then data),
// flushing the buffer first if the new packet wouldn't fit within a single
// adb WRTE payload.
func (c *Connection) send(tag Tag, data []byte, sizeOverride uint32) error {
	size := sizeOverride
	if len(data) > 0 {
		size = uint32(len(data))
	}

	const headerLen = 8
	if len(c.sendBuffer)+headerLen+len(data) > adbproto.MaxAdbData {
		if err := c.flush(); err != nil {
			return err
		}
	}

	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header[0:4], uint32(tag))
	binary.LittleEndian.PutUint32(header[4:8], size)
	c.sendBuffer = append(c.sendBuffer, header...)
	c.sendBuffer = append(c.sendBuffer, data...)
	return nil
}

func (c *Connection) flush() error {
	if len(c.sendBuffer) == 0 {
		return nil
	}
	if _, err := c.stream.Write(c.sendBuffer); err != nil {
		return adberr.Wrap(adberr.WriteFailed, err, "flush filesync send buffer")
	}
	c.sendBuffer = c.sendBuffer[:0]
	return nil
}

// readPacket flushes any pending sends, then reads one filesync packet:
// tag, extraWords more little-endian uint32 header fields, and — if
// readData is true — a trailing payload whose length is the last header
// field (which is excluded from the returned header slice).
func (c *Connection) readPacket(extraWords int, readData bool) (tag Tag, header []uint32, data []byte, err error) {
	if err := c.flush(); err != nil {
		return 0, nil, nil, err
	}

	headerLen := (1 + extraWords) * 4
	raw, err := c.readBuffered(headerLen)
	if err != nil {
		return 0, nil, nil, err
	}

	tag = Tag(binary.LittleEndian.Uint32(raw[0:4]))
	words := make([]uint32, extraWords)
	for i := 0; i < extraWords; i++ {
		words[i] = binary.LittleEndian.Uint32(raw[4+i*4 : 8+i*4])
	}

	if !readData {
		return tag, words, nil, nil
	}

	if len(words) == 0 {
		return tag, nil, nil, adberr.New(adberr.InvalidResponse, "filesync packet %s declares no size field", tag)
	}
	size := words[len(words)-1]
	header = words[:len(words)-1]

	if size > 0 {
		data, err = c.readBuffered(int(size))
		if err != nil {
			return 0, nil, nil, err
		}
	}
	return tag, header, data, nil
}

// readBuffered ensures the receive buffer holds at least n bytes (pulling
// more WRTE chunks from the stream as needed) and carves n bytes off it.
func (c *Connection) readBuffered(n int) ([]byte, error) {
	for len(c.recvBuffer) < n {
		_, data, err := c.stream.ReadUntil(adbproto.CmdWrte)
		if err != nil {
			return nil, err
		}
		c.recvBuffer = append(c.recvBuffer, data...)
	}
	result := c.recvBuffer[:n]
	c.recvBuffer = c.recvBuffer[n:]
	return result, nil
}

func isFail(tag Tag) bool {
	return tag == tagFail
}

// Stat requests mode/size/mtime for filename on the device.
func (c *Connection) Stat(filename string) (mode, size, mtime uint32, err error) {
	if err := c.send(tagStat, []byte(filename), 0); err != nil {
		return 0, 0, 0, err
	}
	tag, header, _, err := c.readPacket(3, false)
	if err != nil {
		return 0, 0, 0, err
	}
	if tag != tagStat {
		return 0, 0, 0, adberr.New(adberr.InvalidResponse, "expected STAT response to STAT, got %s", tag)
	}
	return header[0], header[1], header[2], nil
}

// List lists the contents of path on the device.
func (c *Connection) List(path string) ([]DeviceFile, error) {
	if err := c.send(tagList, []byte(path), 0); err != nil {
		return nil, err
	}

	var files []DeviceFile
	for {
		tag, header, data, err := c.readPacket(4, true)
		if err != nil {
			return nil, err
		}
		if isFail(tag) {
			return nil, adberr.New(adberr.AdbCommandFailure, "list failed: %s", string(data))
		}
		if tag == tagDone {
			break
		}
		if tag != tagDent {
			return nil, adberr.New(adberr.InvalidResponse, "expected DENT, got %s", tag)
		}
		files = append(files, DeviceFile{Filename: string(data), Mode: header[0], Size: header[1], Mtime: header[2]})
	}
	return files, nil
}

// ProgressFunc is called after each chunk transferred by Pull or Push.
// totalBytes is -1 when unknown.
type ProgressFunc func(filename string, current, totalBytes int64)

// Pull reads filename from the device into dest.
func (c *Connection) Pull(filename string, dest io.Writer, onProgress ProgressFunc) error {
	var total int64 = -1
	if onProgress != nil {
		_, size, _, err := c.Stat(filename)
		if err != nil {
			return err
		}
		total = int64(size)
	}

	if err := c.send(tagRecv, []byte(filename), 0); err != nil {
		return err
	}

	var current int64
	for {
		tag, _, data, err := c.readPacket(1, true)
		if err != nil {
			return err
		}
		if isFail(tag) {
			return adberr.New(adberr.AdbCommandFailure, "pull failed: %s", string(data))
		}
		if tag == tagDone {
			return nil
		}
		if tag != tagData {
			return adberr.New(adberr.InvalidResponse, "expected DATA, got %s", tag)
		}
		if _, err := dest.Write(data); err != nil {
			return adberr.Wrap(adberr.WriteFailed, err, "write pulled data for %s", filename)
		}
		current += int64(len(data))
		if onProgress != nil {
			onProgress(filename, current, total)
		}
	}
}

// Push writes src to filename on the device with the given mode and
// modification time (mtime=0 uses the current time).
func (c *Connection) Push(src io.Reader, filename string, mode uint32, mtime time.Time, onProgress ProgressFunc) error {
	if mode == 0 {
		mode = DefaultPushMode
	}

	fileInfo := fmt.Sprintf("%s,%d", filename, mode)
	if err := c.send(tagSend, []byte(fileInfo), 0); err != nil {
		return err
	}

	buf := make([]byte, MaxPushData)
	var current int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if sendErr := c.send(tagData, buf[:n], 0); sendErr != nil {
				return sendErr
			}
			current += int64(n)
			if onProgress != nil {
				onProgress(filename, current, -1)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return adberr.Wrap(adberr.ReadFailed, err, "read push source for %s", filename)
		}
	}

	mtimeUnix := uint32(mtime.Unix())
	if mtimeUnix == 0 {
		mtimeUnix = uint32(time.Now().Unix())
	}
	if err := c.send(tagDone, nil, mtimeUnix); err != nil {
		return err
	}

	tag, _, data, err := c.readPacket(1, true)
	if err != nil {
		return err
	}
	if tag == tagOkay {
		return nil
	}
	return adberr.New(adberr.PushFailed, "push failed: %s", string(data))
}

// Quit tells the device to end the filesync session.
func (c *Connection) Quit() error {
	return c.send(tagQuit, nil, 0)
}
