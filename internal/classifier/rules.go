package classifier

import (
	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// buildRules returns the precedence list. Order matters: prohibited statuses
// dominate everything, then explicit labels, then channel indicators, then
// queue state.
func buildRules(v Vocabulary) []Rule {
	prohibited := append(append([]string{}, v.NoAnswer...), v.AfterCallWork...)

	return []Rule{
		keywordRule("prohibited", types.CategoryProhibited, prohibited),
		{
			Name:     "task",
			Category: types.CategoryTask,
			Match: func(in *Input) bool {
				return in.Obs.Channels.Task || containsAny(in.Label, v.Task)
			},
		},
		keywordRule("non_contact", types.CategoryNonContact, v.NonContact),
		keywordRule("break", types.CategoryBreak, v.Break),
		keywordRule("meal", types.CategoryMeal, v.Meal),
		keywordRule("meeting", types.CategoryMeeting, v.Meeting),
		keywordRule("training", types.CategoryTraining, v.Training),
		keywordRule("paid_work", types.CategoryPaidWork, v.PaidWork),
		{
			Name:     "chat",
			Category: types.CategoryChat,
			Match: func(in *Input) bool {
				ch := in.Obs.Channels
				return ch.Chat || ch.Email || ch.SMS
			},
		},
		{
			Name:     "call",
			Category: types.CategoryCall,
			Match: func(in *Input) bool {
				return in.Obs.Channels.Voice ||
					in.Obs.StatusClass == types.StatusClassOnCall ||
					containsAny(in.Label, v.Interaction)
			},
		},
		{
			Name:     "queue_idle",
			Category: types.CategoryQueueIdle,
			Match: func(in *Input) bool {
				return in.Obs.OnQueue && in.Obs.ActivityCount == 0
			},
		},
		{
			Name:     "interaction_outside_queue",
			Category: types.CategoryInteractionOutsideQueue,
			Match: func(in *Input) bool {
				return !in.Obs.OnQueue && in.Obs.ActivityCount > 0
			},
		},
		{
			Name:     "available",
			Category: types.CategoryAvailable,
			Match: func(in *Input) bool {
				return !in.Obs.OnQueue && containsAny(in.Label, v.Available)
			},
		},
	}
}

func keywordRule(name string, category types.Category, keywords []string) Rule {
	return Rule{
		Name:     name,
		Category: category,
		Match: func(in *Input) bool {
			return containsAny(in.Label, keywords)
		},
	}
}
