package gntp

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
)

// DecodeResponse parses a plain (unencrypted) response.
func DecodeResponse(raw []byte) (Response, error) { return defaultCodec.DecodeResponse(raw) }

// DecodeMessage parses any GNTP message. password is only needed for
// encrypted messages or to verify a key hash; pass "" otherwise.
func DecodeMessage(raw []byte, password string) (Message, error) {
	c := &Codec{Security: Security{Password: password}}
	return c.DecodeMessage(raw)
}

// DecodeResponse parses a response, decrypting it with the codec password
// when the server encrypted it.
func (c *Codec) DecodeResponse(raw []byte) (Response, error) {
	m, err := c.DecodeMessage(raw)
	if err != nil {
		return Response{}, err
	}
	status := Status(strings.ToUpper(m.Directive))
	switch status {
	case StatusOK, StatusError, StatusCallback:
	default:
		return Response{}, protocolErrorf("unexpected response status %q", m.Directive)
	}
	r := Response{
		Status:           status,
		Action:           Action(strings.ToUpper(strings.TrimSpace(m.Headers.Get(HeaderResponseAction)))),
		ErrorDescription: m.Headers.Get(HeaderErrorDescription),
		NotificationID:   m.Headers.Get(HeaderNotificationID),
		CallbackResult:   m.Headers.Get(HeaderCallbackResult),
		Headers:          m.Headers,
	}
	if code, ok := m.Headers.Lookup(HeaderErrorCode); ok && code != "" {
		n, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil {
			return Response{}, &ProtocolError{Reason: "Error-Code", Err: err}
		}
		r.ErrorCode = n
	}
	return r, nil
}

// DecodeMessage parses raw into a Message.
func (c *Codec) DecodeMessage(raw []byte) (Message, error) {
	sc := newScanner(raw)
	line, ok := sc.next()
	if !ok {
		return Message{}, protocolErrorf("empty message")
	}
	info, err := parseInfoLine(line)
	if err != nil {
		return Message{}, err
	}
	m := Message{
		Version:    info.version,
		Directive:  info.directive,
		Encryption: info.encryption,
		Hash:       info.hash,
		Resources:  map[string][]byte{},
	}

	var km *keyMaterial
	if info.hash != HashNone && c.Security.Password != "" {
		k, err := verifyKey(c.Security.Password, info.hash, info.keyHash, info.salt)
		if err != nil {
			return Message{}, err
		}
		km = &k
	}

	var blocks []Headers
	if info.encryption == EncryptionNone {
		blocks, err = parseBlocks(sc, m.Resources, nil)
		if err != nil {
			return Message{}, err
		}
	} else {
		if km == nil {
			return Message{}, &ProtocolError{Reason: "encrypted message", Err: ErrPasswordRequired}
		}
		ciph, err := info.encryption.cipher()
		if err != nil {
			return Message{}, &ProtocolError{Reason: "encrypted message", Err: err}
		}
		rest := sc.rest()
		end := sealedEnd(rest, ciph.BlockSize())
		sealed, tail := rest, []byte(nil)
		if end >= 0 {
			sealed, tail = rest[:end], rest[end+2*len(crlf):]
		}
		plain, err := km.decrypt(info.encryption, info.iv, sealed)
		if err != nil {
			return Message{}, &ProtocolError{Reason: "decrypt headers", Err: err}
		}
		blocks, err = parseBlocks(newScanner(plain), nil, nil)
		if err != nil {
			return Message{}, err
		}
		open := func(b []byte) ([]byte, error) { return km.decrypt(info.encryption, info.iv, b) }
		if _, err := parseBlocks(newScannerEOL(tail, crlf), m.Resources, open); err != nil {
			return Message{}, err
		}
	}

	if len(blocks) > 0 {
		m.Headers = blocks[0]
		m.Sections = blocks[1:]
	}
	return m, nil
}

type infoLine struct {
	version    string
	directive  string
	encryption EncryptionAlgorithm
	iv         []byte
	hash       HashAlgorithm
	keyHash    []byte
	salt       []byte
}

func parseInfoLine(line string) (infoLine, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return infoLine{}, protocolErrorf("malformed info line %q", line)
	}
	proto, version, ok := strings.Cut(fields[0], "/")
	if !ok || proto != ProtocolName {
		return infoLine{}, protocolErrorf("unknown protocol in %q", line)
	}
	if version != Version {
		return infoLine{}, protocolErrorf("unsupported version %q", version)
	}
	info := infoLine{version: version, directive: fields[1], encryption: EncryptionNone}
	if len(fields) >= 3 {
		alg, ivHex, hasIV := strings.Cut(fields[2], ":")
		info.encryption = EncryptionAlgorithm(strings.ToUpper(alg))
		if info.encryption != EncryptionNone {
			if _, err := info.encryption.cipher(); err != nil {
				return infoLine{}, &ProtocolError{Reason: "encryption", Err: err}
			}
			if !hasIV {
				return infoLine{}, protocolErrorf("encryption %q has no iv", fields[2])
			}
			iv, err := hex.DecodeString(ivHex)
			if err != nil {
				return infoLine{}, &ProtocolError{Reason: "iv", Err: err}
			}
			info.iv = iv
		}
	}
	if len(fields) >= 4 {
		h, keyHash, salt, err := parseKeyToken(fields[3])
		if err != nil {
			return infoLine{}, err
		}
		info.hash, info.keyHash, info.salt = h, keyHash, salt
	}
	if info.encryption != EncryptionNone && info.hash == HashNone {
		return infoLine{}, protocolErrorf("encrypted message without key hash")
	}
	return info, nil
}

// sealedEnd finds the CRLF CRLF terminating an encrypted block, only
// accepting offsets aligned to the cipher block size.
func sealedEnd(b []byte, blockSize int) int {
	sep := []byte(crlf + crlf)
	for off := 0; off < len(b); {
		i := bytes.Index(b[off:], sep)
		if i < 0 {
			return -1
		}
		if pos := off + i; pos > 0 && pos%blockSize == 0 {
			return pos
		}
		off += i + 1
	}
	return -1
}

// parseBlocks reads header blocks separated by blank lines. Blocks carrying
// an Identifier are binary resources: Length bytes follow the blank line and
// are stored in resources (after open, when set).
func parseBlocks(sc *scanner, resources map[string][]byte, open func([]byte) ([]byte, error)) ([]Headers, error) {
	var blocks []Headers
	for {
		block, err := readBlock(sc)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return blocks, nil
		}
		id, isResource := block.Lookup(HeaderIdentifier)
		if !isResource {
			blocks = append(blocks, block)
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(block.Get(HeaderLength)))
		if err != nil || n < 0 {
			return nil, protocolErrorf("resource %q has invalid length", id)
		}
		data, ok := sc.take(n)
		if !ok {
			return nil, protocolErrorf("resource %q truncated", id)
		}
		if open != nil {
			if data, err = open(data); err != nil {
				return nil, &ProtocolError{Reason: "decrypt resource " + id, Err: err}
			}
		}
		if resources != nil {
			resources[id] = data
		}
	}
}

// readBlock skips blank lines, then collects header lines until the next
// blank line or end of input. It returns nil at end of input.
func readBlock(sc *scanner) (Headers, error) {
	var block Headers
	for {
		line, ok := sc.next()
		if !ok {
			return block, nil
		}
		if line == "" {
			if block == nil {
				continue
			}
			return block, nil
		}
		key, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(key) == "" {
			return nil, protocolErrorf("malformed header line %q", line)
		}
		block = append(block, Header{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
}

type scanner struct {
	data []byte
	pos  int
	eol  []byte
}

// newScanner splits on CRLF, or on bare LF when the input has no CRLF.
func newScanner(data []byte) *scanner {
	if bytes.Contains(data, []byte(crlf)) {
		return newScannerEOL(data, crlf)
	}
	return newScannerEOL(data, "\n")
}

func newScannerEOL(data []byte, eol string) *scanner {
	return &scanner{data: data, eol: []byte(eol)}
}

func (s *scanner) next() (string, bool) {
	if s.pos >= len(s.data) {
		return "", false
	}
	i := bytes.Index(s.data[s.pos:], s.eol)
	if i < 0 {
		line := s.data[s.pos:]
		s.pos = len(s.data)
		return string(line), true
	}
	line := s.data[s.pos : s.pos+i]
	s.pos += i + len(s.eol)
	return string(line), true
}

func (s *scanner) take(n int) ([]byte, bool) {
	if s.pos+n > len(s.data) {
		return nil, false
	}
	out := s.data[s.pos : s.pos+n]
	s.pos += n
	return out, true
}

func (s *scanner) rest() []byte {
	out := s.data[s.pos:]
	s.pos = len(s.data)
	return out
}
