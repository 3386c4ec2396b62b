package models

type PollType string

const (
	PollTypeSingle PollType = "single" // 单选：每人最多一票
	PollTypeMulti  PollType = "multi"  // 多选：每人每个选项最多一票
)

type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// UserVote 投票明细，是 Options[].Votes 和 TotalVotes 的唯一依据
type UserVote struct {
	UserID      string `json:"userId"`
	OptionIndex int    `json:"optionIndex"`
}

// Poll is embedded in a Message as a JSON document.
// Options order is fixed at creation; the index identifies an option.
type Poll struct {
	Question   string       `json:"question"`
	Options    []PollOption `json:"options"`
	Type       PollType     `json:"type"`
	TotalVotes int          `json:"totalVotes"`
	UserVotes  []UserVote   `json:"userVotes"`
}

// Clone returns a deep copy.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Options = append([]PollOption(nil), p.Options...)
	cp.UserVotes = append([]UserVote(nil), p.UserVotes...)
	return &cp
}
