package inmemory_test

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mindlinkco/mindlink/pkg/crystal"
	"github.com/mindlinkco/mindlink/pkg/store"
	"github.com/mindlinkco/mindlink/pkg/store/inmemory"
)

var _ = Describe("Store", func() {
	var (
		s    *inmemory.Store
		ctx  context.Context
		base time.Time
	)

	newTopic := func(userID, id, title string) *store.Topic {
		return &store.Topic{
			ID:        id,
			UserID:    userID,
			Title:     title,
			CreatedAt: base,
			UpdatedAt: base,
		}
	}

	newFeed := func(id, topicID, content string, at time.Time) *store.FeedItem {
		return &store.FeedItem{
			ID:        id,
			TopicID:   topicID,
			Content:   content,
			CreatedAt: at,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		s = inmemory.New()
		base = time.Now()
	})

	AfterEach(func() {
		s.Close()
	})

	Describe("topics", func() {
		It("creates a topic and appends its create event", func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "t1", "First"))).To(Succeed())

			got, err := s.GetTopic(ctx, "alice", "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("First"))

			events, err := s.ListEvents(ctx, "t1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal(store.EventCreate))
		})

		It("treats another user's topic as missing", func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "t1", "First"))).To(Succeed())

			_, err := s.GetTopic(ctx, "mallory", "t1")
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("lists topics most recently updated first", func() {
			older := newTopic("alice", "t1", "older")
			older.UpdatedAt = base.Add(-time.Hour)
			Expect(s.CreateTopic(ctx, older)).To(Succeed())
			Expect(s.CreateTopic(ctx, newTopic("alice", "t2", "newer"))).To(Succeed())

			topics, err := s.ListTopics(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(topics).To(HaveLen(2))
			Expect(topics[0].ID).To(Equal("t2"))
		})

		It("updates the crystal", func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "t1", "First"))).To(Succeed())

			c := crystal.New("goal")
			c.CurrentKnowledge = []string{"k"}
			Expect(s.UpdateCrystal(ctx, "t1", c)).To(Succeed())

			got, err := s.GetTopic(ctx, "alice", "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Crystal).NotTo(BeNil())
			Expect(got.Crystal.CurrentKnowledge).To(Equal([]string{"k"}))
		})

		It("deletes a topic with its feeds, events and outputs but not anchors", func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "t1", "First"))).To(Succeed())
			Expect(s.AddFeed(ctx, newFeed("f1", "t1", "note", base))).To(Succeed())
			_, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "minimum viable product"})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.DeleteTopic(ctx, "alice", "t1")).To(Succeed())

			_, err = s.GetTopic(ctx, "alice", "t1")
			Expect(store.IsNotFound(err)).To(BeTrue())
			_, err = s.GetFeed(ctx, "f1")
			Expect(store.IsNotFound(err)).To(BeTrue())

			anchors, err := s.ListAnchors(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(anchors).To(HaveLen(1))
		})
	})

	Describe("feeds", func() {
		BeforeEach(func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "t1", "First"))).To(Succeed())
		})

		It("lists feeds newest first with a limit", func() {
			Expect(s.AddFeed(ctx, newFeed("f1", "t1", "one", base))).To(Succeed())
			Expect(s.AddFeed(ctx, newFeed("f2", "t1", "two", base.Add(time.Minute)))).To(Succeed())
			Expect(s.AddFeed(ctx, newFeed("f3", "t1", "three", base.Add(2*time.Minute)))).To(Succeed())

			feeds, err := s.ListFeeds(ctx, "t1", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(feeds).To(HaveLen(2))
			Expect(feeds[0].ID).To(Equal("f3"))
			Expect(feeds[1].ID).To(Equal("f2"))
		})

		It("lists only cleaned feeds, oldest first", func() {
			Expect(s.AddFeed(ctx, newFeed("f1", "t1", "one", base))).To(Succeed())
			Expect(s.AddFeed(ctx, newFeed("f2", "t1", "two", base.Add(time.Minute)))).To(Succeed())
			Expect(s.SetFeedCleaned(ctx, "f2", "two cleaned")).To(Succeed())

			cleaned, err := s.ListCleanedFeeds(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cleaned).To(HaveLen(1))
			Expect(cleaned[0].CleanedContent).To(Equal("two cleaned"))
		})

		It("orders cleaned feeds chronologically", func() {
			Expect(s.AddFeed(ctx, newFeed("f2", "t1", "later", base.Add(time.Hour)))).To(Succeed())
			Expect(s.AddFeed(ctx, newFeed("f1", "t1", "earlier", base))).To(Succeed())
			Expect(s.SetFeedCleaned(ctx, "f1", "earlier")).To(Succeed())
			Expect(s.SetFeedCleaned(ctx, "f2", "later")).To(Succeed())

			cleaned, err := s.ListCleanedFeeds(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cleaned[0].ID).To(Equal("f1"))
			Expect(cleaned[1].ID).To(Equal("f2"))
		})

		It("overwrites raw and cleaned content on a user edit", func() {
			Expect(s.AddFeed(ctx, newFeed("f1", "t1", "original", base))).To(Succeed())
			Expect(s.UpdateFeedContent(ctx, "alice", "f1", "edited")).To(Succeed())

			got, err := s.GetFeed(ctx, "f1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("edited"))
			Expect(got.CleanedContent).To(Equal("edited"))
		})

		It("refuses edits and deletes through another user", func() {
			Expect(s.AddFeed(ctx, newFeed("f1", "t1", "note", base))).To(Succeed())

			err := s.UpdateFeedContent(ctx, "mallory", "f1", "hacked")
			Expect(store.IsNotFound(err)).To(BeTrue())
			err = s.DeleteFeed(ctx, "mallory", "f1")
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("counts feeds", func() {
			Expect(s.AddFeed(ctx, newFeed("f1", "t1", "one", base))).To(Succeed())
			Expect(s.AddFeed(ctx, newFeed("f2", "t1", "two", base))).To(Succeed())

			n, err := s.CountFeeds(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})

	Describe("anchors", func() {
		It("creates at version 1 and increments on every upsert", func() {
			a, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "v1 def"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Version).To(Equal(1))
			Expect(a.Active).To(BeTrue())

			a, err = s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "v2 def"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Version).To(Equal(2))
			Expect(a.Definition).To(Equal("v2 def"))
		})

		It("scopes anchors per user", func() {
			_, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "alice's"})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.GetAnchor(ctx, "bob", "MVP")
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("deactivates without losing version history", func() {
			_, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "def"})
			Expect(err).NotTo(HaveOccurred())

			ok, err := s.DeactivateAnchor(ctx, "alice", "MVP")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			active, err := s.ListActiveAnchors(ctx, "alice", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())

			// An upsert resurrects the anchor and keeps counting.
			a, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "back"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Version).To(Equal(2))
			Expect(a.Active).To(BeTrue())
		})

		It("reports a missing anchor on deactivate and delete", func() {
			ok, err := s.DeactivateAnchor(ctx, "alice", "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			ok, err = s.DeleteAnchor(ctx, "alice", "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("hard-deletes on explicit delete", func() {
			_, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "def"})
			Expect(err).NotTo(HaveOccurred())

			ok, err := s.DeleteAnchor(ctx, "alice", "MVP")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			_, err = s.GetAnchor(ctx, "alice", "MVP")
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("limits active anchors and orders by most recent update", func() {
			for _, key := range []string{"a", "b", "c"} {
				_, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: key, Definition: key})
				Expect(err).NotTo(HaveOccurred())
				time.Sleep(time.Millisecond)
			}

			active, err := s.ListActiveAnchors(ctx, "alice", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(2))
			Expect(active[0].Key).To(Equal("c"))
		})
	})

	Describe("tags", func() {
		BeforeEach(func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "t1", "First"))).To(Succeed())
		})

		It("caps the tag set and drops duplicates", func() {
			err := s.SetTopicTags(ctx, "t1", []string{"a", "b", "a", "c", "d", "e", "f"})
			Expect(err).NotTo(HaveOccurred())

			tags, err := s.GetTopicTags(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(len(tags)).To(BeNumerically("<=", store.MaxTopicTags))
			Expect(tags).To(ContainElement("a"))
		})

		It("keeps replaced names in the global vocabulary", func() {
			Expect(s.SetTopicTags(ctx, "t1", []string{"old"})).To(Succeed())
			Expect(s.SetTopicTags(ctx, "t1", []string{"new"})).To(Succeed())

			names, err := s.ListTagNames(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ContainElements("old", "new"))
		})
	})

	Describe("prompt overrides", func() {
		It("stores, returns and clears overrides", func() {
			got, err := s.GetPromptOverride(ctx, "cleaner")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())

			Expect(s.SetPromptOverride(ctx, "cleaner", "custom")).To(Succeed())
			got, _ = s.GetPromptOverride(ctx, "cleaner")
			Expect(got).To(Equal("custom"))

			Expect(s.SetPromptOverride(ctx, "cleaner", "")).To(Succeed())
			got, _ = s.GetPromptOverride(ctx, "cleaner")
			Expect(got).To(BeEmpty())
		})
	})

	Describe("outputs", func() {
		It("truncates the event summary on a rune boundary", func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "t1", "First"))).To(Succeed())
			Expect(s.AddOutput(ctx, &store.OutputTask{
				ID:          "out1",
				TopicID:     "t1",
				Instruction: "a" + strings.Repeat("€", 10),
				Result:      "done",
				CreatedAt:   time.Now().UTC(),
			})).To(Succeed())

			events, err := s.ListEvents(ctx, "t1", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(utf8.ValidString(events[0].Summary)).To(BeTrue())
			Expect(events[0].Summary).To(Equal("output: a" + strings.Repeat("€", 9) + "..."))
		})
	})

	Describe("ApplySynthesis", func() {
		BeforeEach(func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "t1", "First"))).To(Succeed())
		})

		It("rejects a topic the user does not own", func() {
			err := s.ApplySynthesis(ctx, &store.SynthesisApply{
				UserID:    "mallory",
				TopicID:   "t1",
				Narrative: "stolen",
			})
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("always overwrites the narrative and keeps summary and tags when nil", func() {
			Expect(s.SetTopicTags(ctx, "t1", []string{"keep"})).To(Succeed())

			err := s.ApplySynthesis(ctx, &store.SynthesisApply{
				UserID:       "alice",
				TopicID:      "t1",
				Narrative:    "the story",
				EventSummary: "refreshed",
			})
			Expect(err).NotTo(HaveOccurred())

			got, _ := s.GetTopic(ctx, "alice", "t1")
			Expect(got.Narrative).To(Equal("the story"))
			Expect(got.Summary).To(BeEmpty())

			tags, _ := s.GetTopicTags(ctx, "t1")
			Expect(tags).To(Equal([]string{"keep"}))
		})

		It("applies summary, tags, anchors and the narrative event together", func() {
			summary := "one-liner"
			err := s.ApplySynthesis(ctx, &store.SynthesisApply{
				UserID:    "alice",
				TopicID:   "t1",
				Narrative: "the story",
				Summary:   &summary,
				Tags:      []string{"x", "y"},
				Anchors: []store.AnchorUpsert{
					{Key: "MVP", Definition: "minimum viable product", Category: store.CategoryConcept},
				},
				EventSummary: "refreshed",
			})
			Expect(err).NotTo(HaveOccurred())

			got, _ := s.GetTopic(ctx, "alice", "t1")
			Expect(got.Summary).To(Equal("one-liner"))

			tags, _ := s.GetTopicTags(ctx, "t1")
			Expect(tags).To(ConsistOf("x", "y"))

			a, err := s.GetAnchor(ctx, "alice", "MVP")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Version).To(Equal(1))

			events, _ := s.ListEvents(ctx, "t1", 1)
			Expect(events[0].EventType).To(Equal(store.EventNarrative))
			Expect(events[0].Summary).To(Equal("refreshed"))
		})
	})

	Describe("AbsorbTopic", func() {
		BeforeEach(func() {
			Expect(s.CreateTopic(ctx, newTopic("alice", "master", "Master"))).To(Succeed())
			Expect(s.CreateTopic(ctx, newTopic("alice", "slave", "Slave"))).To(Succeed())
		})

		It("verifies ownership of both topics", func() {
			note := newFeed("n1", "master", "absorbed", base)
			err := s.AbsorbTopic(ctx, "mallory", "master", "slave", note, nil)
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("moves supplements, records the absorb event and deletes the slave", func() {
			note := newFeed("n1", "master", "absorbed Slave", base)
			note.CleanedContent = note.Content
			sup := newFeed("s1", "master", "[from slave topic: Slave] unique", base.Add(-time.Hour))
			sup.CleanedContent = sup.Content

			Expect(s.AbsorbTopic(ctx, "alice", "master", "slave", note, []*store.FeedItem{sup})).To(Succeed())

			_, err := s.GetTopic(ctx, "alice", "slave")
			Expect(store.IsNotFound(err)).To(BeTrue())

			cleaned, err := s.ListCleanedFeeds(ctx, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(cleaned).To(HaveLen(2))
			// The supplement sits at its historical position.
			Expect(cleaned[0].ID).To(Equal("s1"))

			events, _ := s.ListEvents(ctx, "master", 1)
			Expect(events[0].EventType).To(Equal(store.EventAbsorb))
			Expect(events[0].Payload).To(HaveKeyWithValue("slave_topic_id", "slave"))
		})
	})
})
