// Package poll implements vote bookkeeping for forum polls.
//
// The UserVotes ledger is the source of truth. Option counts and TotalVotes are
// cached values; TotalVotes is always recomputed from the option counts after a
// mutation so the floor-at-zero clamps can never make it drift.
package poll

import (
	"errors"
	"fmt"
	"strings"

	"campushub/internal/models"
)

var (
	ErrNotAPoll      = errors.New("message is not a poll")
	ErrInvalidOption = errors.New("invalid poll option")
	ErrInvalidPoll   = errors.New("invalid poll")
	ErrMissingVoter  = errors.New("voter id is required")
)

// Transition 描述一次投票造成的变化
type Transition string

const (
	TransitionAdded   Transition = "added"
	TransitionChanged Transition = "changed"
	TransitionRemoved Transition = "removed"
)

// NewPoll builds an empty poll: every option starts at 0 votes and the ledger is empty.
func NewPoll(question string, options []string, pollType models.PollType) (*models.Poll, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidPoll)
	}
	if pollType == "" {
		pollType = models.PollTypeSingle
	}
	if pollType != models.PollTypeSingle && pollType != models.PollTypeMulti {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPoll, pollType)
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("%w: at least two options are required", ErrInvalidPoll)
	}

	p := &models.Poll{
		Question:  question,
		Options:   make([]models.PollOption, 0, len(options)),
		Type:      pollType,
		UserVotes: []models.UserVote{},
	}
	for i, text := range options {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("%w: option %d is empty", ErrInvalidPoll, i)
		}
		p.Options = append(p.Options, models.PollOption{Text: text})
	}
	return p, nil
}

// ApplyVote toggles userID's vote on optionIndex and returns what happened.
//
// Single polls: voting the held option removes it, voting another option moves
// the vote, otherwise a vote is added. Multi polls toggle each option on its own.
func ApplyVote(p *models.Poll, userID string, optionIndex int) (Transition, error) {
	if p == nil {
		return "", ErrNotAPoll
	}
	if userID == "" {
		return "", ErrMissingVoter
	}
	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return "", fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidOption, optionIndex, len(p.Options))
	}

	var t Transition
	if p.Type == models.PollTypeMulti {
		t = applyMulti(p, userID, optionIndex)
	} else {
		t = applySingle(p, userID, optionIndex)
	}

	p.TotalVotes = sumVotes(p)
	return t, nil
}

func applySingle(p *models.Poll, userID string, optionIndex int) Transition {
	for i, v := range p.UserVotes {
		if v.UserID != userID {
			continue
		}
		if v.OptionIndex == optionIndex {
			// 再次点击同一选项：取消投票
			p.UserVotes = append(p.UserVotes[:i], p.UserVotes[i+1:]...)
			decrement(p, optionIndex)
			return TransitionRemoved
		}
		decrement(p, v.OptionIndex)
		p.UserVotes[i].OptionIndex = optionIndex
		p.Options[optionIndex].Votes++
		return TransitionChanged
	}

	p.UserVotes = append(p.UserVotes, models.UserVote{UserID: userID, OptionIndex: optionIndex})
	p.Options[optionIndex].Votes++
	return TransitionAdded
}

func applyMulti(p *models.Poll, userID string, optionIndex int) Transition {
	for i, v := range p.UserVotes {
		if v.UserID == userID && v.OptionIndex == optionIndex {
			p.UserVotes = append(p.UserVotes[:i], p.UserVotes[i+1:]...)
			decrement(p, optionIndex)
			return TransitionRemoved
		}
	}

	p.UserVotes = append(p.UserVotes, models.UserVote{UserID: userID, OptionIndex: optionIndex})
	p.Options[optionIndex].Votes++
	return TransitionAdded
}

// decrement floors at zero.
func decrement(p *models.Poll, optionIndex int) {
	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return
	}
	if p.Options[optionIndex].Votes > 0 {
		p.Options[optionIndex].Votes--
	}
}

func sumVotes(p *models.Poll) int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}

// Recount rebuilds option counts and the total from the ledger. Ledger entries
// pointing at unknown options are dropped, as are duplicates the poll type forbids.
// It reports whether anything changed.
func Recount(p *models.Poll) bool {
	if p == nil {
		return false
	}

	counts := make([]int, len(p.Options))
	seen := make(map[string]bool, len(p.UserVotes))
	kept := make([]models.UserVote, 0, len(p.UserVotes))
	for _, v := range p.UserVotes {
		if v.OptionIndex < 0 || v.OptionIndex >= len(p.Options) {
			continue
		}
		key := v.UserID
		if p.Type == models.PollTypeMulti {
			key = fmt.Sprintf("%s#%d", v.UserID, v.OptionIndex)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, v)
		counts[v.OptionIndex]++
	}

	changed := len(kept) != len(p.UserVotes)
	for i := range p.Options {
		if p.Options[i].Votes != counts[i] {
			p.Options[i].Votes = counts[i]
			changed = true
		}
	}
	total := sumVotes(p)
	if p.TotalVotes != total {
		p.TotalVotes = total
		changed = true
	}
	p.UserVotes = kept
	return changed
}

// HasVoted reports the options userID currently holds.
func HasVoted(p *models.Poll, userID string) []int {
	if p == nil {
		return nil
	}
	var out []int
	for _, v := range p.UserVotes {
		if v.UserID == userID {
			out = append(out, v.OptionIndex)
		}
	}
	return out
}
