package generator

import (
	"devecho/classify"
	"devecho/retrieval"
)

// ExtractSources returns the source URLs of the retrieved content. For
// repository and web inputs the input URL always comes first, followed by
// the URLs cited in the retrieved context.
func ExtractSources(res retrieval.Result) []string {
	found := res.SourceURLs
	if len(found) == 0 {
		found = retrieval.FindURLs(res.RetrievedContext)
	}
	var sources []string
	switch classify.ParseKind(res.InputType) {
	case classify.RepositorySource, classify.WebSource:
		if res.InputURL != "" {
			sources = append(sources, res.InputURL)
		}
	}
	for _, u := range found {
		if len(sources) > 0 && u == sources[0] {
			continue
		}
		sources = append(sources, u)
	}
	return sources
}
