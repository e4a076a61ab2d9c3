package consolidate_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/consolidate"
	"github.com/mindlinkco/mindlink/pkg/crystal"
	"github.com/mindlinkco/mindlink/pkg/eventstream/nop"
	"github.com/mindlinkco/mindlink/pkg/gateway"
	"github.com/mindlinkco/mindlink/pkg/prompt"
	"github.com/mindlinkco/mindlink/pkg/store"
	"github.com/mindlinkco/mindlink/pkg/store/inmemory"
)

// stubGateway lets a test script the completion answer and inspect the
// request it was given.
type stubGateway func(ctx context.Context, req *gateway.Request) (string, error)

func (f stubGateway) Complete(ctx context.Context, req *gateway.Request) (string, error) {
	return f(ctx, req)
}

var _ = Describe("Consolidator", func() {
	var (
		ctx context.Context
		st  *inmemory.Store
	)

	newConsolidator := func(gw gateway.Client) *consolidate.Consolidator {
		return consolidate.New(st, gw, prompt.NewRegistry(st), nop.NewPublisher(), zap.NewNop())
	}

	addTopicAndFeed := func(c *crystal.Crystal) {
		now := time.Now()
		topic := &store.Topic{ID: "t1", UserID: "alice", Title: "Beta launch", CreatedAt: now, UpdatedAt: now}
		topic.Crystal = c
		Expect(st.CreateTopic(ctx, topic)).To(Succeed())
		Expect(st.AddFeed(ctx, &store.FeedItem{ID: "f1", TopicID: "t1", Content: "um so pricing maybe 9 bucks??", CreatedAt: now})).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		st = inmemory.New()
	})

	It("cleans the note, updates the crystal and logs an organize event", func() {
		gw := stubGateway(func(_ context.Context, _ *gateway.Request) (string, error) {
			return `{
				"cleaned_content": "Considering a $9 price point.",
				"structure": {"core_goal": "launch the beta", "pending_notes": ["validate $9 pricing"]},
				"summary": "priced the beta"
			}`, nil
		})

		addTopicAndFeed(nil)
		c := newConsolidator(gw)
		c.Process("alice", "t1", "f1", "um so pricing maybe 9 bucks??")
		c.Wait()

		feed, err := st.GetFeed(ctx, "f1")
		Expect(err).NotTo(HaveOccurred())
		Expect(feed.CleanedContent).To(Equal("Considering a $9 price point."))

		topic, err := st.GetTopic(ctx, "alice", "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(topic.Crystal).NotTo(BeNil())
		Expect(topic.Crystal.CoreGoal).To(Equal("launch the beta"))
		Expect(topic.Crystal.PendingNotes).To(Equal([]string{"validate $9 pricing"}))
		Expect(topic.Crystal.Highlights).NotTo(BeNil())

		events, err := st.ListEvents(ctx, "t1", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(events[0].EventType).To(Equal(store.EventOrganize))
		Expect(events[0].Summary).To(Equal("priced the beta"))
	})

	It("restores evolution entries the gateway dropped", func() {
		gw := stubGateway(func(_ context.Context, _ *gateway.Request) (string, error) {
			return `{
				"cleaned_content": "cleaned",
				"structure": {"core_goal": "launch", "evolution": ["switched to usage-based pricing"]},
				"summary": "s"
			}`, nil
		})

		existing := crystal.New("launch")
		existing.Evolution = []string{"started as a side project"}
		addTopicAndFeed(existing)

		c := newConsolidator(gw)
		c.Process("alice", "t1", "f1", "note")
		c.Wait()

		topic, err := st.GetTopic(ctx, "alice", "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(topic.Crystal.Evolution).To(ContainElements(
			"switched to usage-based pricing",
			"started as a side project",
		))
	})

	It("omits the crystal section for a topic with no structure yet", func() {
		var captured *gateway.Request
		gw := stubGateway(func(_ context.Context, req *gateway.Request) (string, error) {
			captured = req
			return `{"cleaned_content": "c", "structure": {}, "summary": "s"}`, nil
		})

		addTopicAndFeed(nil)
		c := newConsolidator(gw)
		c.Process("alice", "t1", "f1", "first thought")
		c.Wait()

		Expect(captured).NotTo(BeNil())
		Expect(captured.Messages).To(HaveLen(2))
		userMsg := captured.Messages[1].Content
		Expect(userMsg).To(ContainSubstring("Topic: Beta launch"))
		Expect(userMsg).To(ContainSubstring("first thought"))
		Expect(userMsg).NotTo(ContainSubstring("Current structure:"))
	})

	It("includes the current crystal once one exists", func() {
		var captured *gateway.Request
		gw := stubGateway(func(_ context.Context, req *gateway.Request) (string, error) {
			captured = req
			return `{"cleaned_content": "c", "structure": {}, "summary": "s"}`, nil
		})

		existing := crystal.New("launch the beta")
		addTopicAndFeed(existing)

		c := newConsolidator(gw)
		c.Process("alice", "t1", "f1", "second thought")
		c.Wait()

		Expect(captured.Messages[1].Content).To(ContainSubstring("Current structure:"))
		Expect(captured.Messages[1].Content).To(ContainSubstring("launch the beta"))
	})

	It("leaves the feed and crystal untouched when the gateway fails", func() {
		gw := stubGateway(func(_ context.Context, _ *gateway.Request) (string, error) {
			return "", errors.New("gateway down")
		})

		addTopicAndFeed(nil)
		c := newConsolidator(gw)
		c.Process("alice", "t1", "f1", "note")
		c.Wait()

		feed, err := st.GetFeed(ctx, "f1")
		Expect(err).NotTo(HaveOccurred())
		Expect(feed.CleanedContent).To(BeEmpty())

		topic, err := st.GetTopic(ctx, "alice", "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(topic.Crystal).To(BeNil())

		// Only the create event is on the timeline.
		events, err := st.ListEvents(ctx, "t1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
	})

	It("leaves state untouched when the response is not valid JSON", func() {
		gw := stubGateway(func(_ context.Context, _ *gateway.Request) (string, error) {
			return "I cannot help with that.", nil
		})

		addTopicAndFeed(nil)
		c := newConsolidator(gw)
		c.Process("alice", "t1", "f1", "note")
		c.Wait()

		feed, _ := st.GetFeed(ctx, "f1")
		Expect(feed.CleanedContent).To(BeEmpty())
	})
})
