// Package retrieval turns a collected document into an answer plus the
// supporting context it was grounded on.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode"

	"devecho/collector"
	"devecho/llm"
	"devecho/store"
)

const (
	defaultChunkSize = 1500
	defaultTopK      = 4
)

// Result is the persisted retrieval artifact.
type Result struct {
	Answer           string   `json:"answer"`
	RetrievedContext []string `json:"retrieved_context"`
	SourceURLs       []string `json:"source_urls"`
	InputType        string   `json:"input_type"`
	InputURL         string   `json:"input_url"`
}

const answerSystem = `You are an assistant for question-answering tasks.
Use the following pieces of retrieved context to answer the question.
If the context does not contain the answer, say what the context does cover and keep to it.
Answer in a few well-structured paragraphs.`

// Retriever reads the run's document and query record and asks the model for
// an answer grounded on the best matching chunks.
type Retriever struct {
	llm       llm.Client
	store     store.Store
	ChunkSize int
	TopK      int
	logger    *log.Logger
}

func New(client llm.Client, st store.Store, logger *log.Logger) (*Retriever, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Retriever{
		llm:       client,
		store:     st,
		ChunkSize: defaultChunkSize,
		TopK:      defaultTopK,
		logger:    logger,
	}, nil
}

// Retrieve builds and persists the retrieval result for runID.
func (r *Retriever) Retrieve(ctx context.Context, runID string) (Result, error) {
	doc, err := r.store.Get(ctx, runID, store.CollectedDocument)
	if err != nil {
		return Result{}, err
	}
	q, err := store.GetJSON[collector.Query](ctx, r.store, runID, store.QueryRecord)
	if err != nil {
		return Result{}, err
	}

	chunks := Chunk(string(doc), r.ChunkSize)
	top := Rank(q.Query, chunks, r.TopK)

	user := buildUser(q.Query, top)
	answer, err := r.llm.Complete(ctx, llm.Prompt{System: answerSystem, User: user})
	if err != nil {
		return Result{}, fmt.Errorf("retrieval answer: %w", err)
	}

	res := Result{
		Answer:           strings.TrimSpace(answer),
		RetrievedContext: top,
		SourceURLs:       FindURLs(top),
		InputType:        q.InputType,
		InputURL:         q.InputURL,
	}
	if res.RetrievedContext == nil {
		res.RetrievedContext = []string{}
	}
	if err := store.PutJSON(ctx, r.store, runID, store.RetrievalResult, res); err != nil {
		return Result{}, err
	}
	r.logger.Printf("[retrieval] run=%s chunks=%d kept=%d sources=%d", runID, len(chunks), len(top), len(res.SourceURLs))
	return res, nil
}

func buildUser(query string, chunks []string) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	if strings.TrimSpace(query) == "" {
		sb.WriteString("Summarize the key points of the content.")
	} else {
		sb.WriteString(query)
	}
	sb.WriteString("\n\nContext:\n")
	if len(chunks) == 0 {
		sb.WriteString("(no context was found for this input)\n")
	}
	for i, c := range chunks {
		fmt.Fprintf(&sb, "[%d]\n%s\n\n", i+1, c)
	}
	return sb.String()
}

// Chunk splits doc on blank lines and packs paragraphs into chunks of at most
// size runes. A paragraph longer than size is cut on rune boundaries.
func Chunk(doc string, size int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}
	for _, para := range strings.Split(doc, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)
		if len(runes) > size {
			flush()
			for len(runes) > 0 {
				n := min(size, len(runes))
				chunks = append(chunks, string(runes[:n]))
				runes = runes[n:]
			}
			continue
		}
		if curLen+len(runes)+2 > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(para)
		curLen += len(runes)
	}
	flush()
	return chunks
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"about": true, "from": true, "into": true, "your": true, "are": true, "was": true,
	"write": true, "post": true, "make": true, "what": true, "how": true,
}

func terms(s string) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 3 || stopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Rank returns the k chunks with the most query term hits. Ties keep
// document order; with no hits the first k chunks are returned.
func Rank(query string, chunks []string, k int) []string {
	if k <= 0 {
		k = defaultTopK
	}
	qs := terms(query)
	type scored struct {
		idx   int
		score int
	}
	list := make([]scored, len(chunks))
	for i, c := range chunks {
		lc := strings.ToLower(c)
		s := 0
		for _, t := range qs {
			s += strings.Count(lc, t)
		}
		list[i] = scored{idx: i, score: s}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })
	if len(list) > k {
		list = list[:k]
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, chunks[s.idx])
	}
	return out
}
