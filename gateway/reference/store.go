package reference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

var (
	errNotFound      = errors.New("reference: record not found")
	errAccountExists = errors.New("reference: account exists")
	errUnavailable   = errors.New("reference: store unavailable")
)

// store keeps provider records in redis:
//
//	<prefix>:acct:<email>  account
//	<prefix>:reg:<id>      pending registration (expires)
//	<prefix>:sess:<id>     session (expires)
type store struct {
	redis  redis.UniversalClient
	prefix string
}

func (s *store) accountKey(email string) string { return s.prefix + ":acct:" + email }
func (s *store) regKey(id string) string        { return s.prefix + ":reg:" + id }
func (s *store) sessionKey(id string) string    { return s.prefix + ":sess:" + id }

func (s *store) getAccount(ctx context.Context, email string) (*account, error) {
	data, err := s.redis.Get(ctx, s.accountKey(email)).Bytes()
	if err != nil {
		return nil, mapRedisErr(err)
	}
	return decodeAccount(data)
}

func (s *store) accountExists(ctx context.Context, email string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.accountKey(email)).Result()
	if err != nil {
		return false, mapRedisErr(err)
	}
	return n > 0, nil
}

func (s *store) saveRegistration(ctx context.Context, r *registration, ttl time.Duration) error {
	data, err := encodeRegistration(r)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.regKey(r.ID), data, ttl).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}

func (s *store) getRegistration(ctx context.Context, id string) (*registration, error) {
	data, err := s.redis.Get(ctx, s.regKey(id)).Bytes()
	if err != nil {
		return nil, mapRedisErr(err)
	}
	return decodeRegistration(data)
}

// updateRegistration applies fn to the registration under WATCH, keeping its TTL.
func (s *store) updateRegistration(ctx context.Context, id string, fn func(*registration) error) error {
	key := s.regKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		reg, err := decodeRegistration(data)
		if err != nil {
			return err
		}
		if err := fn(reg); err != nil {
			return err
		}
		encoded, err := encodeRegistration(reg)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, encoded, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}, key)
}

// promoteRegistration atomically turns a registration into an account and
// stores the first session.
func (s *store) promoteRegistration(ctx context.Context, regID string, acct *account, sess *sessionRecord) error {
	regKey := s.regKey(regID)
	acctKey := s.accountKey(acct.Email)

	acctData, err := encodeAccount(acct)
	if err != nil {
		return err
	}
	sessData, err := encodeSession(sess)
	if err != nil {
		return err
	}

	return s.watch(ctx, func(tx *redis.Tx) error {
		if n, err := tx.Exists(ctx, regKey).Result(); err != nil {
			return err
		} else if n == 0 {
			return errNotFound
		}
		if n, err := tx.Exists(ctx, acctKey).Result(); err != nil {
			return err
		} else if n > 0 {
			return errAccountExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, acctKey, acctData, 0)
			pipe.Del(ctx, regKey)
			pipe.Set(ctx, s.sessionKey(sess.SessionID), sessData, time.Until(time.Unix(sess.ExpiresAt, 0)))
			return nil
		})
		return err
	}, regKey, acctKey)
}

func (s *store) saveSession(ctx context.Context, sess *sessionRecord) error {
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	ttl := time.Until(time.Unix(sess.ExpiresAt, 0))
	if err := s.redis.Set(ctx, s.sessionKey(sess.SessionID), data, ttl).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}

func (s *store) getSession(ctx context.Context, id string) (*sessionRecord, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		return nil, mapRedisErr(err)
	}
	return decodeSession(data)
}

func (s *store) activateSession(ctx context.Context, id string) error {
	key := s.sessionKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		sess, err := decodeSession(data)
		if err != nil {
			return err
		}
		if sess.Active {
			return nil
		}
		sess.Active = true
		encoded, err := encodeSession(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, encoded, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}, key)
}

func (s *store) deleteSession(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.sessionKey(id)).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}

func (s *store) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return mapRedisErr(err)
	}
	return fmt.Errorf("%w: transaction contention", errUnavailable)
}

func mapRedisErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return errNotFound
	case errors.Is(err, errNotFound), errors.Is(err, errAccountExists):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", errUnavailable, err)
	}
}
