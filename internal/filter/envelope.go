package filter

import (
	"fmt"
	"io"
	"strings"
)

// Envelope framing constants. The magic doubles as the pack footer magic;
// the two are disambiguated by file position.
const (
	EnvelopeMagic   = "CLPF"
	EnvelopeVersion = 1

	flagNormalize = 0x01
)

// Envelope is the on-disk unit holding one filter together with the
// configuration needed to query it faithfully:
//
//	magic("CLPF") | version(u32) | kind(u8) | flags(u8) | reserved(u16) |
//	fpr(f64) | num_elements(u64) | body
//
// A KindNone envelope has no body and admits every query.
type Envelope struct {
	Config      Config
	NumElements uint64
	Filter      Probabilistic
}

// BuildEnvelope constructs the configured filter over keys and wraps it.
func BuildEnvelope(cfg Config, keys []string) (*Envelope, error) {
	f, err := Build(cfg, keys)
	if err != nil {
		return nil, err
	}
	return &Envelope{Config: cfg, NumElements: uint64(len(keys)), Filter: f}, nil
}

// Encode writes the envelope. The body is omitted for KindNone.
func (e *Envelope) Encode(w io.Writer) error {
	ww := wireWriter{w: w}
	ww.write([]byte(EnvelopeMagic))
	ww.u32(EnvelopeVersion)
	ww.u8(uint8(e.Config.Kind))
	var flags uint8
	if e.Config.Normalize {
		flags |= flagNormalize
	}
	ww.u8(flags)
	ww.u16(0) // reserved
	ww.f64(e.Config.FalsePositiveRate)
	ww.u64(e.NumElements)
	if ww.err != nil {
		return ww.err
	}

	if e.Config.Kind == KindNone {
		return nil
	}
	return e.Filter.impl.writeBody(w)
}

// DecodeEnvelope reads an envelope back. The reader should be positioned
// at the magic; the filter body is fully reconstructed so the result
// answers PossiblyContains identically to the filter that was written.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	rr := wireReader{r: r}

	magic := rr.bytes(uint64(len(EnvelopeMagic)))
	if rr.err != nil {
		return nil, rr.err
	}
	if string(magic) != EnvelopeMagic {
		return nil, ErrBadMagic
	}
	if version := rr.u32(); rr.err == nil && version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}

	kind := Kind(rr.u8())
	flags := rr.u8()
	rr.u16() // reserved
	fpr := rr.f64()
	numElements := rr.u64()
	if rr.err != nil {
		return nil, rr.err
	}

	env := &Envelope{
		Config: Config{
			Kind:              kind,
			FalsePositiveRate: fpr,
			Normalize:         flags&flagNormalize != 0,
		},
		NumElements: numElements,
	}

	p, err := newEmpty(kind)
	if err != nil {
		return nil, err
	}
	if p.impl != nil {
		if err := p.impl.readBody(r); err != nil {
			return nil, err
		}
	}
	env.Filter = p
	return env, nil
}

// term applies the envelope's normalization to a query term.
func (e *Envelope) term(t string) []byte {
	if e.Config.Normalize {
		t = strings.ToLower(t)
	}
	return []byte(t)
}

// MightContainAll reports whether every term possibly appears. Used where
// all terms of a conjunction must be present (pack scan): one definite
// miss proves no record can match. A KindNone envelope always admits.
func (e *Envelope) MightContainAll(terms []string) bool {
	if e.Config.Kind == KindNone {
		return true
	}
	for _, t := range terms {
		if !e.Filter.PossiblyContains(e.term(t)) {
			return false
		}
	}
	return true
}

// MightContainAny reports whether at least one term possibly appears. Used
// by the pre-dictionary check: if every term is definitely absent the
// dictionary cannot produce a match. A KindNone envelope always admits.
func (e *Envelope) MightContainAny(terms []string) bool {
	if e.Config.Kind == KindNone {
		return true
	}
	for _, t := range terms {
		if e.Filter.PossiblyContains(e.term(t)) {
			return true
		}
	}
	return false
}
