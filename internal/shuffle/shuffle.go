// Package shuffle produces the stable per-(question, submission) orderings
// used for delivering choices and matching pairs. The same seed always
// yields the same permutation, so a test-taker sees one fixed order across
// page loads and the stored correctness mappings stay valid.
package shuffle

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// Seed derives the shuffle seed from the question id and, when a submission
// context exists, the submission id. Outside a submission (authoring
// preview) the question id alone seeds the shuffle.
func Seed(questionID, submissionID uint) int64 {
	h := fnv.New64a()
	if submissionID != 0 {
		fmt.Fprintf(h, "%d:%d", submissionID, questionID)
	} else {
		fmt.Fprintf(h, "%d", questionID)
	}
	return int64(h.Sum64())
}

// Shuffler is a seeded permutation source. Not safe for concurrent use;
// callers create one per operation.
type Shuffler struct {
	r *rand.Rand
}

func New(seed int64) *Shuffler {
	return &Shuffler{r: rand.New(rand.NewSource(seed))}
}

// Perm returns a Fisher-Yates permutation of [0, n). Successive calls
// consume the same generator, so the call order is part of the contract:
// for matching questions the match (prompt) permutation is always drawn
// first, then the choice permutation.
func (s *Shuffler) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := s.r.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// MatchingOrder draws the two permutations a matching question needs, in
// the fixed documented order: matches first, then choices.
func MatchingOrder(questionID, submissionID uint, matches, choices int) (matchPerm, choicePerm []int) {
	s := New(Seed(questionID, submissionID))
	matchPerm = s.Perm(matches)
	choicePerm = s.Perm(choices)
	return matchPerm, choicePerm
}

// ChoiceOrder draws the single permutation choice-type questions need.
func ChoiceOrder(questionID, submissionID uint, choices int) []int {
	return New(Seed(questionID, submissionID)).Perm(choices)
}

// ChoiceLabel renders the positional label of a delivered choice: A., B., C.
// and so on, assigned after shuffling. Positions beyond Z double the letter.
func ChoiceLabel(pos int) string {
	letter := rune('A' + pos%26)
	count := pos/26 + 1
	label := make([]rune, count)
	for i := range label {
		label[i] = letter
	}
	return string(label) + "."
}

// MatchLabel renders the positional label of a delivered match prompt: 1.,
// 2., 3. and so on, assigned after shuffling.
func MatchLabel(pos int) string {
	return fmt.Sprintf("%d.", pos+1)
}
