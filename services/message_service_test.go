package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/search"
	"chat-hub/errors"
	"chat-hub/mocks"
	"chat-hub/moderation"
	"context"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMessageService_Create_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	general := lo.ToPtr("general")

	testCases := []struct {
		name  string
		draft domain.Draft
	}{
		{name: "empty content", draft: domain.Draft{RoomID: general}},
		{name: "blank content", draft: domain.Draft{Content: "   ", RoomID: general}},
		{name: "too long", draft: domain.Draft{Content: strings.Repeat("a", 5001), RoomID: general}},
		{name: "no scope", draft: domain.Draft{Content: "floating"}},
		{name: "unknown kind", draft: domain.Draft{Content: "x", RoomID: general, Kind: "poll"}},
		{name: "attachment without url", draft: domain.Draft{Content: "x", RoomID: general, Attachments: []domain.Attachment{{Name: "a.png"}}}},
		{name: "unknown mime type", draft: domain.Draft{Content: "x", RoomID: general, Attachments: []domain.Attachment{{URL: "https://cdn/a", MimeType: "application/x-not-a-thing"}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.messages.Create(ctx, alice, tc.draft)
			require.ErrorIs(t, err, errors.ErrValidation)
		})
	}
}

func TestMessageService_Create_InfersKind(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)

	testCases := []struct {
		name        string
		attachments []domain.Attachment
		expected    domain.MessageKind
	}{
		{name: "no attachment", expected: domain.KindText},
		{name: "image", attachments: []domain.Attachment{{URL: "https://cdn/cat.png", MimeType: "image/png"}}, expected: domain.KindImage},
		{name: "document", attachments: []domain.Attachment{{URL: "https://cdn/plan.pdf", MimeType: "application/pdf"}}, expected: domain.KindFile},
		{name: "untyped attachment", attachments: []domain.Attachment{{URL: "https://cdn/blob"}}, expected: domain.KindFile},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			message, err := h.messages.Create(ctx, alice, domain.Draft{Content: "look", RoomID: lo.ToPtr("general"), Attachments: tc.attachments})
			require.NoError(t, err)
			require.Equal(t, tc.expected, message.Kind)
		})
	}
}

func TestMessageService_Create_KeepsExplicitKind(t *testing.T) {
	req := require.New(t)
	h := newHub(t)

	message, err := h.messages.Create(context.Background(), alice, domain.Draft{
		Content:   "moved to review",
		TaskID:    lo.ToPtr("42"),
		Kind:      domain.KindTaskUpdate,
		Mentions:  []string{bob.ID, "", bob.ID},
		ProjectID: lo.ToPtr("apollo"),
	})

	req.NoError(err)
	req.Equal(domain.KindTaskUpdate, message.Kind)
	req.Equal([]string{bob.ID}, message.Mentions)
	req.Equal(alice.Name, message.SenderName)
}

func TestMessageService_Replies_AreFlattened(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHub(t)
	general := lo.ToPtr("general")

	root, err := h.messages.Create(ctx, alice, domain.Draft{Content: "root", RoomID: general})
	req.NoError(err)
	first, err := h.messages.Create(ctx, bob, domain.Draft{Content: "first", RoomID: general, ReplyToID: lo.ToPtr(root.ID)})
	req.NoError(err)
	req.Equal(root.ID, *first.ReplyToID)

	// When replying to the reply
	second, err := h.messages.Create(ctx, carol, domain.Draft{Content: "second", RoomID: general, ReplyToID: lo.ToPtr(first.ID)})

	// Then the thread stays one level deep
	req.NoError(err)
	req.Equal(root.ID, *second.ReplyToID)
}

func TestMessageService_Reply_InvalidParent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHub(t)

	elsewhere, err := h.messages.Create(ctx, alice, domain.Draft{Content: "elsewhere", RoomID: lo.ToPtr("random")})
	req.NoError(err)
	gone, err := h.messages.Create(ctx, alice, domain.Draft{Content: "gone", RoomID: lo.ToPtr("general")})
	req.NoError(err)
	_, err = h.messages.SoftDelete(ctx, gone.ID, alice.ID)
	req.NoError(err)

	for _, parent := range []string{elsewhere.ID, gone.ID, "missing"} {
		_, err = h.messages.Create(ctx, bob, domain.Draft{Content: "reply", RoomID: lo.ToPtr("general"), ReplyToID: lo.ToPtr(parent)})
		req.ErrorIs(err, errors.ErrNotFound, parent)
	}
}

func TestMessageService_SoftDelete_KeepsReplies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHub(t)
	general := lo.ToPtr("general")

	root, err := h.messages.Create(ctx, alice, domain.Draft{Content: "root", RoomID: general})
	req.NoError(err)
	reply, err := h.messages.Create(ctx, bob, domain.Draft{Content: "reply", RoomID: general, ReplyToID: lo.ToPtr(root.ID)})
	req.NoError(err)

	deleted, err := h.messages.SoftDelete(ctx, root.ID, alice.ID)
	req.NoError(err)
	req.NotNil(deleted.DeletedAt)

	found, err := h.messages.Find(ctx, reply.ID)
	req.NoError(err)
	req.Equal(root.ID, *found.ReplyToID)
	_, err = h.messages.Find(ctx, root.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestMessageService_ListForRoom_Pages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHub(t)
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		_, err := h.messages.Create(ctx, alice, domain.Draft{Content: content, RoomID: lo.ToPtr("general")})
		req.NoError(err)
	}
	_, err := h.messages.Create(ctx, alice, domain.Draft{Content: "other room", RoomID: lo.ToPtr("random")})
	req.NoError(err)

	contents := func(page, size int) []string {
		messages, err := h.messages.ListForRoom(ctx, "general", page, size)
		req.NoError(err)
		return lo.Map(messages, func(m domain.Message, _ int) string { return m.Content })
	}

	req.Equal([]string{"five", "four"}, contents(1, 2))
	req.Equal([]string{"three", "two"}, contents(2, 2))
	req.Equal([]string{"one"}, contents(3, 2))
	req.Empty(contents(4, 2))
	req.Equal([]string{"five", "four"}, contents(0, 2))
	req.Len(contents(1, 0), 5)
}

func TestMessageService_Update_Validation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHub(t)
	message, err := h.messages.Create(ctx, alice, domain.Draft{Content: "hello", RoomID: lo.ToPtr("general")})
	req.NoError(err)

	_, err = h.messages.Update(ctx, message.ID, "", alice.ID)
	req.ErrorIs(err, errors.ErrValidation)
	_, err = h.messages.Update(ctx, "missing", "hello", alice.ID)
	req.ErrorIs(err, errors.ErrNotFound)

	stored, err := h.messages.Find(ctx, message.ID)
	req.NoError(err)
	req.False(stored.IsEdited)
}

func TestMessageService_Moderation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHub(t)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', discardLogger())
	req.NoError(err)
	h.messages.moderator = moderator

	created, err := h.messages.Create(ctx, alice, domain.Draft{Content: "the badger again", RoomID: lo.ToPtr("general")})
	req.NoError(err)
	req.Equal("the ****** again", created.Content)

	updated, err := h.messages.Update(ctx, created.ID, "no BADGER here", alice.ID)
	req.NoError(err)
	req.Equal("no ****** here", updated.Content)
}

func TestMessageService_SubmitsIndexJobs(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	h := newHub(t)

	var jobs []contract.IndexJob
	queue := mocks.NewMockIIndexQueue(ctrl)
	queue.EXPECT().Submit(gomock.Any()).DoAndReturn(func(job contract.IndexJob) bool {
		jobs = append(jobs, job)
		return true
	}).Times(3)
	h.messages.queue = queue

	message, err := h.messages.Create(ctx, alice, domain.Draft{Content: "index me", RoomID: lo.ToPtr("general")})
	req.NoError(err)
	_, err = h.messages.Update(ctx, message.ID, "index me again", alice.ID)
	req.NoError(err)
	_, err = h.messages.SoftDelete(ctx, message.ID, alice.ID)
	req.NoError(err)

	req.Len(jobs, 3)
	req.False(jobs[0].Remove)
	req.Equal("index me again", jobs[1].Message.Content)
	req.True(jobs[2].Remove)
	req.Equal(message.ID, jobs[2].Message.ID)
}

func TestMessageService_Search(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	h := newHub(t)

	live, err := h.messages.Create(ctx, alice, domain.Draft{Content: "deploy plan", RoomID: lo.ToPtr("general")})
	req.NoError(err)
	deleted, err := h.messages.Create(ctx, alice, domain.Draft{Content: "deploy rollback", RoomID: lo.ToPtr("general")})
	req.NoError(err)
	_, err = h.messages.SoftDelete(ctx, deleted.ID, alice.ID)
	req.NoError(err)
	foreign, err := h.messages.Create(ctx, alice, domain.Draft{Content: "deploy elsewhere", RoomID: lo.ToPtr("random")})
	req.NoError(err)

	// Given a page size above the search cap and a query asking for more
	h.messages.settings.MaxPageSize = 200
	query := search.Query{Terms: "deploy", Limit: 500}
	index := mocks.NewMockIMessageIndex(ctrl)
	index.EXPECT().
		Search(gomock.Any(), "general", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, q search.Query) ([]string, error) {
			req.Equal(100, q.Limit)
			req.Equal("deploy", q.Terms)
			return []string{deleted.ID, live.ID, foreign.ID, "stale"}, nil
		}).Times(1)
	h.messages.index = index

	found, err := h.messages.Search(ctx, "general", query)

	req.NoError(err)
	req.Len(found, 1)
	req.Equal(live.ID, found[0].ID)
}

func TestMessageService_Search_LimitFollowsPageSize(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newHub(t)
	h.messages.settings.MaxPageSize = 10

	var limits []int
	index := mocks.NewMockIMessageIndex(ctrl)
	index.EXPECT().Search(gomock.Any(), "general", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, q search.Query) ([]string, error) {
			limits = append(limits, q.Limit)
			return nil, nil
		}).Times(2)
	h.messages.index = index

	_, err := h.messages.Search(context.Background(), "general", search.NewSearchQuery("deploy --limit 50"))
	req.NoError(err)
	_, err = h.messages.Search(context.Background(), "general", search.Query{Terms: "deploy"})
	req.NoError(err)

	req.Equal([]int{10, 10}, limits)
}

func TestMessageService_Search_EmptyQuery(t *testing.T) {
	h := newHub(t)

	_, err := h.messages.Search(context.Background(), "general", search.NewSearchQuery("   "))

	require.ErrorIs(t, err, errors.ErrValidation)
}
