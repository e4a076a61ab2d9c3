package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mindlinkco/mindlink/pkg/crystal"
	"github.com/mindlinkco/mindlink/pkg/store"
	"github.com/mindlinkco/mindlink/pkg/store/sqlite"
)

func sqliteTestTopic(userID, id, title string) *store.Topic {
	now := time.Now().UTC().Truncate(time.Second)
	return &store.Topic{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sqliteTestFeed(id, topicID, content string, at time.Time) *store.FeedItem {
	return &store.FeedItem{
		ID:        id,
		TopicID:   topicID,
		Content:   content,
		CreatedAt: at.UTC().Truncate(time.Second),
	}
}

var _ = Describe("Store", func() {
	var (
		s   *sqlite.Store
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		s, err = sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if s != nil {
			s.Close()
		}
	})

	Describe("New", func() {
		It("creates the database file on disk", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "mindlink.db")

			fs, err := sqlite.New(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer fs.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("topics", func() {
		It("round-trips a topic with its crystal", func() {
			t := sqliteTestTopic("alice", "t1", "First")
			c := crystal.New("ship the beta")
			c.Highlights = []string{"landing page done"}
			t.Crystal = c
			Expect(s.CreateTopic(ctx, t)).To(Succeed())

			got, err := s.GetTopic(ctx, "alice", "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("First"))
			Expect(got.Crystal).NotTo(BeNil())
			Expect(got.Crystal.CoreGoal).To(Equal("ship the beta"))
			Expect(got.Crystal.Highlights).To(Equal([]string{"landing page done"}))
		})

		It("records a create event", func() {
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "t1", "First"))).To(Succeed())

			events, err := s.ListEvents(ctx, "t1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal(store.EventCreate))
		})

		It("hides topics from other users", func() {
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "t1", "First"))).To(Succeed())

			_, err := s.GetTopic(ctx, "mallory", "t1")
			Expect(store.IsNotFound(err)).To(BeTrue())
			err = s.DeleteTopic(ctx, "mallory", "t1")
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("persists a crystal update", func() {
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "t1", "First"))).To(Succeed())

			c := crystal.New("goal")
			c.PendingNotes = []string{"check pricing"}
			Expect(s.UpdateCrystal(ctx, "t1", c)).To(Succeed())

			got, err := s.GetTopic(ctx, "alice", "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Crystal.PendingNotes).To(Equal([]string{"check pricing"}))
		})

		It("cascades feeds and events on delete", func() {
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "t1", "First"))).To(Succeed())
			Expect(s.AddFeed(ctx, sqliteTestFeed("f1", "t1", "note", time.Now()))).To(Succeed())

			Expect(s.DeleteTopic(ctx, "alice", "t1")).To(Succeed())

			_, err := s.GetFeed(ctx, "f1")
			Expect(store.IsNotFound(err)).To(BeTrue())
			events, err := s.ListEvents(ctx, "t1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})
	})

	Describe("feeds", func() {
		var base time.Time

		BeforeEach(func() {
			base = time.Now().UTC().Truncate(time.Second)
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "t1", "First"))).To(Succeed())
		})

		It("orders raw feeds newest first and cleaned feeds oldest first", func() {
			Expect(s.AddFeed(ctx, sqliteTestFeed("f1", "t1", "one", base))).To(Succeed())
			Expect(s.AddFeed(ctx, sqliteTestFeed("f2", "t1", "two", base.Add(time.Minute)))).To(Succeed())
			Expect(s.SetFeedCleaned(ctx, "f1", "one cleaned")).To(Succeed())
			Expect(s.SetFeedCleaned(ctx, "f2", "two cleaned")).To(Succeed())

			raw, err := s.ListFeeds(ctx, "t1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw[0].ID).To(Equal("f2"))

			cleaned, err := s.ListCleanedFeeds(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cleaned[0].ID).To(Equal("f1"))
			Expect(cleaned[0].CleanedContent).To(Equal("one cleaned"))
		})

		It("keeps chronological order across sub-second timestamps", func() {
			addAt := func(id, content string, at time.Time) {
				Expect(s.AddFeed(ctx, &store.FeedItem{
					ID:        id,
					TopicID:   "t1",
					Content:   content,
					CreatedAt: at,
				})).To(Succeed())
				Expect(s.SetFeedCleaned(ctx, id, content)).To(Succeed())
			}
			addAt("f1", "whole second", base)
			addAt("f2", "half past", base.Add(500*time.Millisecond))
			addAt("f3", "a bit later", base.Add(520*time.Millisecond))

			cleaned, err := s.ListCleanedFeeds(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cleaned).To(HaveLen(3))
			Expect(cleaned[0].CleanedContent).To(Equal("whole second"))
			Expect(cleaned[1].CleanedContent).To(Equal("half past"))
			Expect(cleaned[2].CleanedContent).To(Equal("a bit later"))
		})

		It("excludes uncleaned feeds from the cleaned listing", func() {
			Expect(s.AddFeed(ctx, sqliteTestFeed("f1", "t1", "pending", base))).To(Succeed())

			cleaned, err := s.ListCleanedFeeds(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cleaned).To(BeEmpty())

			n, err := s.CountFeeds(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("resets cleaned content on a user edit", func() {
			Expect(s.AddFeed(ctx, sqliteTestFeed("f1", "t1", "original", base))).To(Succeed())
			Expect(s.SetFeedCleaned(ctx, "f1", "original cleaned")).To(Succeed())

			Expect(s.UpdateFeedContent(ctx, "alice", "f1", "edited")).To(Succeed())

			got, err := s.GetFeed(ctx, "f1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("edited"))
			Expect(got.CleanedContent).To(Equal("edited"))
		})

		It("enforces ownership on edit and delete", func() {
			Expect(s.AddFeed(ctx, sqliteTestFeed("f1", "t1", "note", base))).To(Succeed())

			Expect(store.IsNotFound(s.UpdateFeedContent(ctx, "mallory", "f1", "x"))).To(BeTrue())
			Expect(store.IsNotFound(s.DeleteFeed(ctx, "mallory", "f1"))).To(BeTrue())
			Expect(s.DeleteFeed(ctx, "alice", "f1")).To(Succeed())
		})
	})

	Describe("anchors", func() {
		It("versions upserts and filters inactive anchors", func() {
			a, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{
				Key:        "MVP",
				Definition: "minimum viable product",
				Category:   store.CategoryConcept,
				Aliases:    []string{"the MVP"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Version).To(Equal(1))
			Expect(a.Aliases).To(Equal([]string{"the MVP"}))

			a, err = s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "v2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Version).To(Equal(2))

			ok, err := s.DeactivateAnchor(ctx, "alice", "MVP")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			active, err := s.ListActiveAnchors(ctx, "alice", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())

			all, err := s.ListAnchors(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("defaults an unknown category to general", func() {
			a, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "x", Definition: "d", Category: "bogus"})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Category).To(Equal(store.CategoryGeneral))
		})

		It("deletes for real", func() {
			_, err := s.UpsertAnchor(ctx, "alice", store.AnchorUpsert{Key: "MVP", Definition: "d"})
			Expect(err).NotTo(HaveOccurred())

			ok, err := s.DeleteAnchor(ctx, "alice", "MVP")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = s.DeleteAnchor(ctx, "alice", "MVP")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("tags", func() {
		BeforeEach(func() {
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "t1", "First"))).To(Succeed())
		})

		It("replaces the tag set and accumulates the vocabulary", func() {
			Expect(s.SetTopicTags(ctx, "t1", []string{"go", "infra"})).To(Succeed())
			Expect(s.SetTopicTags(ctx, "t1", []string{"go", "notes"})).To(Succeed())

			tags, err := s.GetTopicTags(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(tags).To(ConsistOf("go", "notes"))

			names, err := s.ListTagNames(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ContainElements("go", "infra", "notes"))
		})
	})

	Describe("events and outputs", func() {
		BeforeEach(func() {
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "t1", "First"))).To(Succeed())
		})

		It("lists events newest first with a limit", func() {
			for _, summary := range []string{"first", "second"} {
				Expect(s.AppendEvent(ctx, &store.TimelineEvent{
					TopicID:   "t1",
					EventType: store.EventOrganize,
					Summary:   summary,
					CreatedAt: time.Now().UTC(),
				})).To(Succeed())
			}

			events, err := s.ListEvents(ctx, "t1", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Summary).To(Equal("second"))
		})

		It("records an output and its timeline event", func() {
			Expect(s.AddOutput(ctx, &store.OutputTask{
				ID:          "out1",
				TopicID:     "t1",
				Instruction: "write a tweet",
				Result:      "done",
				CreatedAt:   time.Now().UTC(),
			})).To(Succeed())

			outputs, err := s.ListOutputs(ctx, "t1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(outputs).To(HaveLen(1))
			Expect(outputs[0].Result).To(Equal("done"))

			events, err := s.ListEvents(ctx, "t1", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(events[0].EventType).To(Equal(store.EventOutput))
		})

		It("truncates event summaries on rune boundaries", func() {
			instruction := "a" + strings.Repeat("€", 10)
			Expect(s.AddOutput(ctx, &store.OutputTask{
				ID:          "out1",
				TopicID:     "t1",
				Instruction: instruction,
				Result:      "done",
				CreatedAt:   time.Now().UTC(),
			})).To(Succeed())

			events, err := s.ListEvents(ctx, "t1", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(utf8.ValidString(events[0].Summary)).To(BeTrue())
			Expect(events[0].Summary).To(Equal("output: a" + strings.Repeat("€", 9) + "..."))
		})
	})

	Describe("prompt overrides", func() {
		It("upserts and clears", func() {
			got, err := s.GetPromptOverride(ctx, "cleaner")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())

			Expect(s.SetPromptOverride(ctx, "cleaner", "v1")).To(Succeed())
			Expect(s.SetPromptOverride(ctx, "cleaner", "v2")).To(Succeed())
			got, err = s.GetPromptOverride(ctx, "cleaner")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("v2"))

			Expect(s.SetPromptOverride(ctx, "cleaner", "")).To(Succeed())
			got, _ = s.GetPromptOverride(ctx, "cleaner")
			Expect(got).To(BeEmpty())
		})
	})

	Describe("ApplySynthesis", func() {
		BeforeEach(func() {
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "t1", "First"))).To(Succeed())
		})

		It("fails for a topic the user does not own", func() {
			err := s.ApplySynthesis(ctx, &store.SynthesisApply{
				UserID:    "mallory",
				TopicID:   "t1",
				Narrative: "stolen",
			})
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("writes narrative, summary, tags, anchors and the event atomically", func() {
			summary := "short take"
			err := s.ApplySynthesis(ctx, &store.SynthesisApply{
				UserID:    "alice",
				TopicID:   "t1",
				Narrative: "long form",
				Summary:   &summary,
				Tags:      []string{"go"},
				Anchors: []store.AnchorUpsert{
					{Key: "MVP", Definition: "minimum viable product"},
				},
				EventSummary: "refreshed",
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := s.GetTopic(ctx, "alice", "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Narrative).To(Equal("long form"))
			Expect(got.Summary).To(Equal("short take"))

			tags, _ := s.GetTopicTags(ctx, "t1")
			Expect(tags).To(Equal([]string{"go"}))

			a, err := s.GetAnchor(ctx, "alice", "MVP")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Version).To(Equal(1))

			events, _ := s.ListEvents(ctx, "t1", 1)
			Expect(events[0].EventType).To(Equal(store.EventNarrative))
		})
	})

	Describe("AbsorbTopic", func() {
		var base time.Time

		BeforeEach(func() {
			base = time.Now().UTC().Truncate(time.Second)
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "master", "Master"))).To(Succeed())
			Expect(s.CreateTopic(ctx, sqliteTestTopic("alice", "slave", "Slave"))).To(Succeed())
		})

		It("fails when the slave is already gone", func() {
			Expect(s.DeleteTopic(ctx, "alice", "slave")).To(Succeed())

			note := sqliteTestFeed("n1", "master", "absorbed", base)
			err := s.AbsorbTopic(ctx, "alice", "master", "slave", note, nil)
			Expect(store.IsNotFound(err)).To(BeTrue())
		})

		It("inserts the note and supplements, then drops the slave", func() {
			note := sqliteTestFeed("n1", "master", "absorbed Slave", base)
			note.CleanedContent = note.Content
			sup := sqliteTestFeed("s1", "master", "[from slave topic: Slave] unique", base.Add(-time.Hour))
			sup.CleanedContent = sup.Content

			Expect(s.AbsorbTopic(ctx, "alice", "master", "slave", note, []*store.FeedItem{sup})).To(Succeed())

			_, err := s.GetTopic(ctx, "alice", "slave")
			Expect(store.IsNotFound(err)).To(BeTrue())

			cleaned, err := s.ListCleanedFeeds(ctx, "master")
			Expect(err).NotTo(HaveOccurred())
			Expect(cleaned).To(HaveLen(2))
			Expect(cleaned[0].ID).To(Equal("s1"))

			events, _ := s.ListEvents(ctx, "master", 1)
			Expect(events[0].EventType).To(Equal(store.EventAbsorb))
		})
	})
})
