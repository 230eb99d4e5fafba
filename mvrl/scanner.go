package mvrl

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import "io"

// Scanner decodes a stream of mVRL frames out of an underlying byte stream,
// resynchronizing on any framing error by scanning forward one byte at a
// time until the next valid "mVRL" magic is found, rather than treating a
// single corrupt frame as fatal (spec 4.7).
type Scanner struct {
	r       io.Reader
	buf     []byte
	skipped int64
}

// NewScanner wraps r for frame-at-a-time decoding.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r, buf: make([]byte, 0, 4096)}
}

// Skipped reports the cumulative number of junk bytes discarded while
// resynchronizing across every Next call so far.
func (s *Scanner) Skipped() int64 { return s.skipped }

// Next returns the next well-formed Frame, skipping and counting any junk
// bytes encountered along the way. Once the underlying reader is exhausted
// it returns the reader's error (io.EOF at end of input); bytes of an
// incomplete trailing frame still buffered at that point are not returned.
func (s *Scanner) Next() (Frame, error) {
	for {
		if len(s.buf) >= minProbeLen {
			f, n, err := decodeAt(s.buf)
			switch {
			case err == nil:
				s.buf = s.buf[n:]
				return f, nil
			case err == errShort:
				// Header (or its declared payload) isn't fully buffered
				// yet; this is not corruption, so don't resynchronize.
			case isFrameError(err):
				// Resynchronize: drop one byte and look for the next magic.
				s.buf = s.buf[1:]
				s.skipped++
				continue
			default:
				return Frame{}, err
			}
		}
		if err := s.fill(); err != nil {
			return Frame{}, err
		}
	}
}

// fill reads one more chunk from the underlying reader into buf. It
// surfaces io.EOF (or any other read error) only once the reader produced
// no further bytes, leaving any incomplete trailing frame in buf
// permanently unresolved — a truncated stream, not a recoverable framing
// error.
func (s *Scanner) fill() error {
	chunk := make([]byte, 4096)
	n, err := s.r.Read(chunk)
	if n > 0 {
		s.buf = append(s.buf, chunk[:n]...)
		return nil
	}
	return err
}
