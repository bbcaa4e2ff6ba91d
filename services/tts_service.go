package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrSynthesis = errors.New("speech synthesis failed")

// Synthesizer turns text into MP3 audio in the given language.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

type SynthesizerFunc func(ctx context.Context, text, language string) ([]byte, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	return f(ctx, text, language)
}

// Google Translate rejects requests longer than this many characters.
const maxChunkRunes = 100

// GoogleTTS speaks through the public Google Translate TTS endpoint.
type GoogleTTS struct {
	BaseURL string
	Client  *http.Client
}

func NewGoogleTTS(baseURL string) *GoogleTTS {
	if baseURL == "" {
		baseURL = "https://translate.google.com"
	}
	return &GoogleTTS{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	chunks := splitText(text, maxChunkRunes)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text to speak", ErrSynthesis)
	}

	var audio []byte
	for i, chunk := range chunks {
		part, err := g.fetchChunk(ctx, chunk, language, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d/%d: %v", ErrSynthesis, i+1, len(chunks), err)
		}
		audio = append(audio, part...)
	}
	return audio, nil
}

func (g *GoogleTTS) fetchChunk(ctx context.Context, chunk, language string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", language)
	q.Set("q", chunk)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", g.BaseURL+"/")

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("tts endpoint returned no audio")
	}
	return data, nil
}

// splitText breaks text into chunks of at most max runes, cutting after
// punctuation first and between words second.
func splitText(text string, max int) []string {
	var chunks []string
	var b strings.Builder
	n := 0
	flush := func() {
		if n > 0 {
			chunks = append(chunks, b.String())
		}
		b.Reset()
		n = 0
	}

	for _, sentence := range splitSentences(text) {
		for _, word := range strings.Fields(sentence) {
			for utf8.RuneCountInString(word) > max {
				flush()
				r := []rune(word)
				chunks = append(chunks, string(r[:max]))
				word = string(r[max:])
			}
			wn := utf8.RuneCountInString(word)
			if n > 0 && n+1+wn > max {
				flush()
			}
			if n > 0 {
				b.WriteByte(' ')
				n++
			}
			b.WriteString(word)
			n += wn
		}
		flush()
	}
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if strings.ContainsRune(".!?;:,\n؟،؛", r) {
			end := i + utf8.RuneLen(r)
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
