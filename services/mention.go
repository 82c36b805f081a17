package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/samber/lo"
)

// MentionResolver turns explicit mention ids and @handles of a text into
// the ordered, unique list of users to notify.
type MentionResolver struct {
	users contract.IUserRepository
	log   *slog.Logger
}

func NewMentionResolver(users contract.IUserRepository, log *slog.Logger) *MentionResolver {
	return &MentionResolver{users: users, log: log}
}

// Resolve keeps explicit ids first, then appends the users behind the handles
// found in content. Unknown handles are dropped.
func (r *MentionResolver) Resolve(ctx context.Context, explicit []string, content string) []string {
	mentions := lo.Compact(explicit)
	for _, handle := range domain.ParseMentions(content) {
		user, err := r.users.FindByHandle(ctx, handle)
		if err != nil {
			if !stderrors.Is(err, errors.ErrNotFound) {
				r.log.Warn("Mention lookup failed", "handle", handle, "error", err)
			}
			continue
		}
		mentions = append(mentions, user.ID)
	}
	return lo.Uniq(mentions)
}
