// Package storagetest holds the behaviour every storage.Driver must satisfy,
// written as ginkgo specs so each driver package can run them.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/serenity/pkg/storage"
)

// DescribeDriver registers the shared driver tests. newDriver is called before
// each test and must return an empty store.
func DescribeDriver(newDriver func(ctx context.Context) storage.Driver) {
	Describe("driver contract", func() {
		var (
			ctx    context.Context
			driver storage.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver(ctx)
			DeferCleanup(driver.Close)
		})

		Describe("Append and Entries", func() {
			It("assigns sequence numbers per chat", func() {
				user := &storage.Entry{ChatID: "chat-1", Role: storage.RoleUser, Message: "hi", Complete: true}
				bot := &storage.Entry{ChatID: "chat-1", Role: storage.RoleBot}
				other := &storage.Entry{ChatID: "chat-2", Role: storage.RoleUser, Message: "elsewhere", Complete: true}

				Expect(driver.Append(ctx, user)).To(Succeed())
				Expect(driver.Append(ctx, other)).To(Succeed())
				Expect(driver.Append(ctx, bot)).To(Succeed())

				Expect(user.Seq).To(Equal(1))
				Expect(bot.Seq).To(Equal(2))
				Expect(other.Seq).To(Equal(1))
			})

			It("fills in the id and creation time", func() {
				entry := &storage.Entry{ChatID: "chat-1", Role: storage.RoleUser, Message: "hi"}
				Expect(driver.Append(ctx, entry)).To(Succeed())

				Expect(entry.ID).NotTo(BeEmpty())
				Expect(entry.CreatedAt).NotTo(BeZero())
			})

			It("returns entries in order with their fields", func() {
				at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
				Expect(driver.Append(ctx, &storage.Entry{ID: "e-1", ChatID: "chat-1", Role: storage.RoleUser, Message: "first", Complete: true, CreatedAt: at})).To(Succeed())
				Expect(driver.Append(ctx, &storage.Entry{ID: "e-2", ChatID: "chat-1", Role: storage.RoleBot, Message: "second", CreatedAt: at})).To(Succeed())

				entries, err := driver.Entries(ctx, "chat-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(entries).To(HaveLen(2))

				Expect(entries[0].ID).To(Equal("e-1"))
				Expect(entries[0].Seq).To(Equal(1))
				Expect(entries[0].Role).To(Equal(storage.RoleUser))
				Expect(entries[0].Message).To(Equal("first"))
				Expect(entries[0].Complete).To(BeTrue())
				Expect(entries[0].CreatedAt.Equal(at)).To(BeTrue())

				Expect(entries[1].ID).To(Equal("e-2"))
				Expect(entries[1].Role).To(Equal(storage.RoleBot))
				Expect(entries[1].Complete).To(BeFalse())
			})

			It("returns no entries for an unknown chat", func() {
				entries, err := driver.Entries(ctx, "missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(entries).To(BeEmpty())
			})

			It("rejects a nil entry", func() {
				Expect(driver.Append(ctx, nil)).To(HaveOccurred())
			})
		})

		Describe("UpdateEntry", func() {
			It("replaces the addressed entry only", func() {
				bot := &storage.Entry{ChatID: "chat-1", Role: storage.RoleBot}
				Expect(driver.Append(ctx, &storage.Entry{ChatID: "chat-1", Role: storage.RoleUser, Message: "hi", Complete: true})).To(Succeed())
				Expect(driver.Append(ctx, bot)).To(Succeed())
				Expect(driver.Append(ctx, &storage.Entry{ChatID: "chat-1", Role: storage.RoleError, Message: "bad frame", Complete: true})).To(Succeed())

				Expect(driver.UpdateEntry(ctx, "chat-1", bot.Seq, "Hel", false)).To(Succeed())
				Expect(driver.UpdateEntry(ctx, "chat-1", bot.Seq, "Hello", true)).To(Succeed())

				entries, err := driver.Entries(ctx, "chat-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(entries).To(HaveLen(3))
				Expect(entries[0].Message).To(Equal("hi"))
				Expect(entries[1].Message).To(Equal("Hello"))
				Expect(entries[1].Complete).To(BeTrue())
				Expect(entries[2].Message).To(Equal("bad frame"))
			})

			It("returns NotFoundError for a missing entry", func() {
				Expect(driver.Append(ctx, &storage.Entry{ChatID: "chat-1", Role: storage.RoleUser, Complete: true})).To(Succeed())

				Expect(storage.IsNotFound(driver.UpdateEntry(ctx, "missing", 1, "x", true))).To(BeTrue())
				Expect(storage.IsNotFound(driver.UpdateEntry(ctx, "chat-1", 2, "x", true))).To(BeTrue())
			})
		})

		Describe("State", func() {
			It("stores and replaces values", func() {
				Expect(driver.SetState(ctx, storage.StateChatID, "chat-1")).To(Succeed())
				Expect(driver.SetState(ctx, storage.StateChatID, "chat-2")).To(Succeed())

				v, err := driver.State(ctx, storage.StateChatID)
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal("chat-2"))
			})

			It("returns NotFoundError for a missing key", func() {
				_, err := driver.State(ctx, storage.StateAgent)
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})
		})

		Describe("Clear", func() {
			It("removes entries and state", func() {
				Expect(driver.Append(ctx, &storage.Entry{ChatID: "chat-1", Role: storage.RoleUser, Message: "hi"})).To(Succeed())
				Expect(driver.SetState(ctx, storage.StateChatID, "chat-1")).To(Succeed())

				Expect(driver.Clear(ctx)).To(Succeed())

				entries, err := driver.Entries(ctx, "chat-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(entries).To(BeEmpty())

				_, err = driver.State(ctx, storage.StateChatID)
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("restarts sequence numbers", func() {
				Expect(driver.Append(ctx, &storage.Entry{ChatID: "chat-1", Role: storage.RoleUser})).To(Succeed())
				Expect(driver.Clear(ctx)).To(Succeed())

				entry := &storage.Entry{ChatID: "chat-1", Role: storage.RoleUser}
				Expect(driver.Append(ctx, entry)).To(Succeed())
				Expect(entry.Seq).To(Equal(1))
			})
		})
	})
}
