package service

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// GetAddressBook returns the address book of a user, reading through to the
// store on a cache miss.
//
// The store read runs without the lock. An entry that appeared meanwhile,
// from a concurrent miss or a write, wins over the value just read.
func (c *Cache) GetAddressBook(ctx context.Context, userID domain.UserID) (domain.AddressBook, error) {
	c.booksMu.RLock()
	if book, ok := c.books[userID]; ok {
		content := book.Content
		c.booksMu.RUnlock()
		c.metrics.RecordLookup("hit")
		return content, nil
	}
	c.booksMu.RUnlock()

	content, err := c.store.GetAddressBook(ctx, userID)
	notFound := errors.Is(err, domain.ErrAddressBookNotFound)
	if err != nil && !notFound {
		c.metrics.RecordLookup("error")
		return "", domain.ErrPersistence.WithDetails("address book read").WithCause(err)
	}

	c.booksMu.Lock()
	if existing, ok := c.books[userID]; ok {
		content = existing.Content
		c.booksMu.Unlock()
		c.metrics.RecordLookup("hit")
		return content, nil
	}
	if !notFound {
		c.books[userID] = &domain.AddressBookInfo{Content: content}
	}
	c.booksMu.Unlock()

	if notFound {
		c.metrics.RecordLookup("not_found")
		return "", domain.ErrAddressBookNotFound
	}
	c.metrics.RecordLookup("miss")
	return content, nil
}

// SetAddressBook stores book in the cache. Persistence is deferred to the
// next flush.
//
// A user with no cached entry gets one with Modified unset, so a first write
// is not flushed until it is changed again.
func (c *Cache) SetAddressBook(userID domain.UserID, book domain.AddressBook) {
	c.booksMu.Lock()
	defer c.booksMu.Unlock()

	entry, ok := c.books[userID]
	switch {
	case !ok:
		c.books[userID] = &domain.AddressBookInfo{Content: book}
		c.metrics.RecordWrite("inserted")
	case entry.Content == book:
		c.metrics.RecordWrite("unchanged")
	default:
		entry.Content = book
		entry.Modified = true
		c.metrics.RecordWrite("modified")
	}
}

// FlushResult describes one write-back sweep.
type FlushResult struct {
	Written int           `json:"written"`
	Evicted int           `json:"evicted"`
	Elapsed time.Duration `json:"elapsed"`
}

// FlushDirtyAddressBooks writes every modified address book to the store in
// one batch.
//
// The address book lock is released while the store call runs. Modified is
// cleared only on entries whose content still equals the value written; if
// the batch fails or the store reports a different row count, no flag is
// cleared and the entries are retried by the next sweep. After a successful
// sweep, clean entries flagged RemoveAfterFlush are evicted.
func (c *Cache) FlushDirtyAddressBooks(ctx context.Context) (FlushResult, error) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	start := time.Now()

	c.booksMu.Lock()
	batch := make([]domain.AddressBookRecord, 0)
	for userID, book := range c.books {
		if book.Modified {
			batch = append(batch, domain.AddressBookRecord{UserID: userID, Content: book.Content})
		}
	}
	c.booksMu.Unlock()

	var res FlushResult

	if len(batch) > 0 {
		rows, err := c.store.UpsertAddressBooks(ctx, batch)
		if err == nil && rows != int64(len(batch)) {
			err = domain.ErrPersistence.WithDetails("batch row count mismatch")
		}
		if err != nil {
			res.Elapsed = time.Since(start)
			c.metrics.RecordFlush("failure", 0, res.Elapsed.Seconds())
			if errors.Is(err, domain.ErrPersistence) {
				return res, err
			}
			return res, domain.ErrPersistence.WithDetails("batch write").WithCause(err)
		}
	}

	c.booksMu.Lock()
	for _, rec := range batch {
		if book, ok := c.books[rec.UserID]; ok && book.Content == rec.Content {
			book.Modified = false
			res.Written++
		}
	}
	for userID, book := range c.books {
		if book.RemoveAfterFlush && !book.Modified {
			delete(c.books, userID)
			res.Evicted++
		}
	}
	c.booksMu.Unlock()

	res.Elapsed = time.Since(start)
	if len(batch) == 0 {
		c.metrics.RecordFlush("empty", 0, 0)
	} else {
		c.metrics.RecordFlush("success", len(batch), res.Elapsed.Seconds())
	}
	c.metrics.AddEvictions(res.Evicted)

	return res, nil
}
