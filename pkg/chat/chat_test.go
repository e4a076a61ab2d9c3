package chat_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/anchor"
	"github.com/mindlinkco/mindlink/pkg/chat"
	"github.com/mindlinkco/mindlink/pkg/crystal"
	"github.com/mindlinkco/mindlink/pkg/gateway"
	"github.com/mindlinkco/mindlink/pkg/prompt"
	"github.com/mindlinkco/mindlink/pkg/store"
	"github.com/mindlinkco/mindlink/pkg/store/inmemory"
)

type stubGateway func(ctx context.Context, req *gateway.Request) (string, error)

func (f stubGateway) Complete(ctx context.Context, req *gateway.Request) (string, error) {
	return f(ctx, req)
}

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		st       *inmemory.Store
		captured *gateway.Request
		svc      *chat.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = inmemory.New()
		captured = nil

		gw := stubGateway(func(_ context.Context, req *gateway.Request) (string, error) {
			captured = req
			return "a thoughtful reply", nil
		})
		anchors := anchor.NewService(st, zap.NewNop())
		svc = chat.NewService(st, gw, prompt.NewRegistry(st), anchors, zap.NewNop())

		now := time.Now()
		Expect(st.CreateTopic(ctx, &store.Topic{
			ID: "t1", UserID: "alice", Title: "Beta launch",
			CreatedAt: now, UpdatedAt: now,
		})).To(Succeed())
	})

	addCleanedFeed := func(id, content string, at time.Time) {
		Expect(st.AddFeed(ctx, &store.FeedItem{ID: id, TopicID: "t1", Content: content, CreatedAt: at})).To(Succeed())
		Expect(st.SetFeedCleaned(ctx, id, content)).To(Succeed())
	}

	It("refuses topics the user does not own", func() {
		_, err := svc.Send(ctx, "mallory", "t1", "hi", nil, chat.StyleDefault)
		Expect(store.IsNotFound(err)).To(BeTrue())
	})

	It("returns the gateway's reply", func() {
		reply, err := svc.Send(ctx, "alice", "t1", "hi", nil, chat.StyleDefault)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("a thoughtful reply"))
	})

	It("builds the system prompt from title, crystal and timeline", func() {
		c := crystal.New("launch the beta")
		c.Highlights = []string{"landing page done"}
		Expect(st.UpdateCrystal(ctx, "t1", c)).To(Succeed())
		addCleanedFeed("f1", "pricing settled at $9", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))

		_, err := svc.Send(ctx, "alice", "t1", "what next?", nil, chat.StyleDefault)
		Expect(err).NotTo(HaveOccurred())

		system := captured.Messages[0].Content
		Expect(system).To(ContainSubstring(`"Beta launch"`))
		Expect(system).To(ContainSubstring("landing page done"))
		Expect(system).To(ContainSubstring("- [2026-02-01 10:00] pricing settled at $9"))
	})

	It("uses placeholders for a topic with no structure or notes", func() {
		_, err := svc.Send(ctx, "alice", "t1", "hello", nil, chat.StyleDefault)
		Expect(err).NotTo(HaveOccurred())

		system := captured.Messages[0].Content
		Expect(system).To(ContainSubstring("No structured understanding yet."))
		Expect(system).To(ContainSubstring("(no notes yet)"))
	})

	It("appends the requested style prompt", func() {
		_, err := svc.Send(ctx, "alice", "t1", "hello", nil, chat.StyleSocratic)
		Expect(err).NotTo(HaveOccurred())
		Expect(captured.Messages[0].Content).To(ContainSubstring("## Style: socratic"))

		_, err = svc.Send(ctx, "alice", "t1", "hello", nil, "bogus")
		Expect(err).NotTo(HaveOccurred())
		Expect(captured.Messages[0].Content).To(ContainSubstring("## Style: analytical"))
	})

	It("relays history between system and the new message", func() {
		history := []chat.Turn{
			{Role: gateway.RoleUser, Content: "first question"},
			{Role: gateway.RoleAssistant, Content: "first answer"},
		}

		_, err := svc.Send(ctx, "alice", "t1", "follow-up", history, chat.StyleDefault)
		Expect(err).NotTo(HaveOccurred())

		Expect(captured.Messages).To(HaveLen(4))
		Expect(captured.Messages[1].Content).To(Equal("first question"))
		Expect(captured.Messages[2].Content).To(Equal("first answer"))
		Expect(captured.Messages[3].Role).To(Equal(gateway.RoleUser))
		Expect(captured.Messages[3].Content).To(Equal("follow-up"))
	})

	It("slips matched anchors in as private background", func() {
		anchors := anchor.NewService(st, zap.NewNop())
		_, err := anchors.Upsert(ctx, "alice", store.AnchorUpsert{
			Key:        "Riley",
			Definition: "the technical cofounder",
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.Send(ctx, "alice", "t1", "should I loop riley in?", nil, chat.StyleDefault)
		Expect(err).NotTo(HaveOccurred())

		system := captured.Messages[0].Content
		Expect(system).To(ContainSubstring("## Private background (not to be quoted verbatim)"))
		Expect(system).To(ContainSubstring("Riley: the technical cofounder"))
	})

	It("keeps unmatched anchors out of the prompt", func() {
		anchors := anchor.NewService(st, zap.NewNop())
		_, err := anchors.Upsert(ctx, "alice", store.AnchorUpsert{
			Key:        "Riley",
			Definition: "the technical cofounder",
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.Send(ctx, "alice", "t1", "general question", nil, chat.StyleDefault)
		Expect(err).NotTo(HaveOccurred())
		Expect(captured.Messages[0].Content).NotTo(ContainSubstring("Private background"))
	})

	It("caps the reply budget", func() {
		_, err := svc.Send(ctx, "alice", "t1", "hello", nil, chat.StyleDefault)
		Expect(err).NotTo(HaveOccurred())
		Expect(captured.MaxTokens).To(Equal(15000))
	})
})

var _ = Describe("Styles", func() {
	It("lists the three selectable styles", func() {
		styles := chat.Styles()
		Expect(styles).To(HaveLen(3))
		Expect(styles[0].ID).To(Equal(chat.StyleDefault))
	})
})
