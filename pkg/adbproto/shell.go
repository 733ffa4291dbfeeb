package adbproto

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"adbhost/pkg/adbtransport"
)

// Command opens service:command, reads the response to completion and
// returns it as a single string. Suitable for small, bounded responses;
// StreamingCommand should be preferred for anything large.
func Command(t adbtransport.Transport, service, command string, packetTimeout time.Duration) (string, error) {
	var out strings.Builder
	err := StreamingCommand(t, service, command, packetTimeout, func(chunk string) error {
		out.WriteString(chunk)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// StreamingCommand opens service:command and calls onChunk once per WRTE
// packet received until the device closes the stream.
func StreamingCommand(t adbtransport.Transport, service, command string, packetTimeout time.Duration, onChunk func(chunk string) error) error {
	destination := fmt.Sprintf("%s:%s", service, command)

	stream, err := Open(t, destination, packetTimeout)
	if err != nil {
		return err
	}

	return stream.ReadUntilClose(func(chunk []byte) error {
		return onChunk(string(chunk))
	})
}

// InteractiveShellOptions configures InteractiveShellCommand.
type InteractiveShellOptions struct {
	// Cmd, if non-empty, is sent (with a trailing carriage return) before
	// reading output.
	Cmd string
	// StripCmd removes the echoed command line from the start of the
	// returned output.
	StripCmd bool
	// Delim, if set, is the shell prompt InteractiveShellCommand reads
	// until (e.g. "shell@hammerhead:/ $ "); without it, exactly one WRTE
	// packet's worth of output is read.
	Delim string
	// StripDelim removes Delim from the returned output.
	StripDelim bool
	// CleanStdout collapses backspace-erase runs the way a real terminal
	// would, instead of returning the raw "x\b" bytes a shell sends.
	CleanStdout bool
}

// InteractiveShellCommand sends an optional command to an already-open
// interactive shell Stream and returns its output, optionally collapsing
// backspace-erase sequences and stripping the echoed command/prompt.
func InteractiveShellCommand(stream *Stream, opts InteractiveShellOptions) (string, error) {
	partialDelim := opts.Delim
	if opts.Delim != "" {
		if at := strings.Index(opts.Delim, "@"); at != -1 {
			if colon := strings.LastIndex(opts.Delim, ":/"); colon != -1 && colon+1 > at {
				partialDelim = opts.Delim[at : colon+1]
			}
		}
	}

	var raw bytes.Buffer

	if opts.Cmd != "" {
		if _, err := stream.Write([]byte(opts.Cmd + "\r")); err != nil {
			return "", err
		}

		if opts.Delim != "" {
			for !strings.Contains(raw.String(), partialDelim) {
				_, data, err := stream.ReadUntil(CmdWrte)
				if err != nil {
					return "", err
				}
				raw.Write(data)
			}
		} else {
			_, data, err := stream.ReadUntil(CmdWrte)
			if err != nil {
				return "", err
			}
			raw.Write(data)
		}
	} else {
		cmd, data, err := stream.ReadUntil(CmdWrte)
		if err != nil {
			return "", err
		}
		if cmd == CmdWrte {
			raw.Write(data)
		}
	}

	out := raw.Bytes()
	if opts.CleanStdout {
		out = cleanBackspaces(out)
	}

	result := string(out)

	if opts.Cmd != "" && opts.StripCmd {
		marker := opts.Cmd + "\r\r\n"
		result = strings.ReplaceAll(result, marker, "")
		if idx := strings.Index(result, "\r\r\n"); idx != -1 {
			parts := strings.SplitN(result, "\r\r\n", 2)
			if len(parts) == 2 {
				result = parts[1]
			}
		}
	}

	if opts.Delim != "" && opts.StripDelim {
		result = strings.ReplaceAll(result, opts.Delim, "")
	}

	return strings.TrimRight(result, " \t\r\n"), nil
}

// cleanBackspaces removes each run of consecutive 0x08 bytes along with the
// same number of bytes immediately preceding it, reproducing what a real
// terminal displays when a shell emits "x\x08" erase sequences. Only the
// observable output is reproduced; this does not attempt to model a
// terminal's cursor position exactly (e.g. backspacing past column 0).
func cleanBackspaces(stdout []byte) []byte {
	var out bytes.Buffer
	pos := 0
	for pos < len(stdout) {
		bsStart := bytes.IndexByte(stdout[pos:], '\b')
		if bsStart == -1 {
			out.Write(stdout[pos:])
			break
		}
		bsStart += pos

		bsEnd := bsStart
		for bsEnd < len(stdout) && stdout[bsEnd] == '\b' {
			bsEnd++
		}
		numBackspaces := bsEnd - bsStart

		out.Write(stdout[pos:bsStart])
		keep := out.Len() - numBackspaces
		if keep < 0 {
			keep = 0
		}
		out.Truncate(keep)
		pos = bsEnd
	}
	return out.Bytes()
}
