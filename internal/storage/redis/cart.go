// Package redis stores carts in Redis. Each cart is one JSON value guarded
// by optimistic concurrency on its version.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/wire"
)

// DefaultCartTTL is used when no TTL is configured.
const DefaultCartTTL = 7 * 24 * time.Hour

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store on Redis.
type CartStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewCartStore creates a CartStore. Carts expire ttl after their last save.
func NewCartStore(client redis.UniversalClient, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartStore{client: client, ttl: ttl, prefix: "cart:"}
}

func (s *CartStore) key(id string) string {
	return s.prefix + id
}

// Get returns cart.ErrCartNotFound for unknown or expired carts.
func (s *CartStore) Get(ctx context.Context, id string) (*cart.Cart, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cart.ErrCartNotFound
		}
		return nil, errors.Wrapf(err, "get cart %q", id)
	}
	c, err := decodeCart(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode cart %q", id)
	}
	return c, nil
}

// Save writes c when the stored version equals c.Version and bumps
// c.Version on success.
func (s *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	key := s.key(c.ID)

	next := *c
	next.Version = c.Version + 1
	data := encodeCart(&next)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if c.Version != 0 {
				return cart.ErrCartNotFound
			}
		case err != nil:
			return errors.Wrap(err, "read current version")
		default:
			cur, err := decodeCart(raw)
			if err != nil {
				return errors.Wrap(err, "decode current cart")
			}
			if cur.Version != c.Version {
				return cart.ErrVersionConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		return cart.ErrVersionConflict
	case err != nil:
		return err
	}

	c.Version = next.Version
	return nil
}

// Delete removes a cart.
func (s *CartStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Wrapf(err, "delete cart %q", id)
	}
	return nil
}

func encodeCart(c *cart.Cart) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("store_id")
	e.Str(c.StoreID)
	e.FieldStart("email")
	e.Str(c.Email)
	e.FieldStart("member")
	e.Bool(c.Member)
	e.FieldStart("shipping_amount")
	wire.Decimal(&e, c.ShippingAmount)
	e.FieldStart("items")
	wire.LineItems(&e, c.Items)
	e.FieldStart("coupons")
	wire.Strings(&e, c.Coupons)
	e.FieldStart("version")
	e.Int64(c.Version)
	e.FieldStart("updated_at")
	e.Str(c.UpdatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

func decodeCart(raw []byte) (*cart.Cart, error) {
	var c cart.Cart
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "store_id":
			c.StoreID, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "member":
			c.Member, err = d.Bool()
		case "shipping_amount":
			c.ShippingAmount, err = wire.DecodeDecimal(d)
		case "items":
			c.Items, err = wire.DecodeLineItems(d)
		case "coupons":
			c.Coupons, err = wire.DecodeStrings(d)
		case "version":
			c.Version, err = d.Int64()
		case "updated_at":
			var s string
			if s, err = d.Str(); err == nil {
				c.UpdatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}
