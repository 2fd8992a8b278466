package memory

// matchLike reports whether s matches a SQL LIKE pattern using backslash as
// the escape character. Matching is case-sensitive, like Postgres LIKE.
func matchLike(pattern, s string) bool {
	p := []rune(pattern)
	str := []rune(s)

	type token struct {
		r       rune
		literal bool
	}
	tokens := make([]token, 0, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '\\' && i+1 < len(p) {
			i++
			tokens = append(tokens, token{r: p[i], literal: true})
			continue
		}
		tokens = append(tokens, token{r: p[i]})
	}

	// match[j] reports whether tokens[:i] matches str[:j]
	match := make([]bool, len(str)+1)
	match[0] = true
	for _, tok := range tokens {
		next := make([]bool, len(str)+1)
		switch {
		case !tok.literal && tok.r == '%':
			seen := false
			for j := 0; j <= len(str); j++ {
				seen = seen || match[j]
				next[j] = seen
			}
		case !tok.literal && tok.r == '_':
			for j := 1; j <= len(str); j++ {
				next[j] = match[j-1]
			}
		default:
			for j := 1; j <= len(str); j++ {
				next[j] = match[j-1] && str[j-1] == tok.r
			}
		}
		match = next
	}
	return match[len(str)]
}
