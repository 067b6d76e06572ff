package tokencache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mediocregopher/radix/v4"
	"golang.org/x/oauth2"
)

const redisKeyPrefix = "microsoft:token:"

// Microsoft refresh tokens live for 90 days unless they're used
const DefaultRedisTTL = 90 * 24 * time.Hour

type Redis struct {
	client radix.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, addr string, poolSize int, ttl time.Duration) (*Redis, error) {
	client, err := (radix.PoolConfig{Size: poolSize}).New(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}

	return &Redis{
		client: client,
		ttl:    ttl,
	}, nil
}

func (r *Redis) Load(ctx context.Context, account string) (*oauth2.Token, error) {
	var encoded []byte
	err := r.client.Do(ctx, radix.Cmd(&encoded, "GET", redisKey(account)))
	if err != nil {
		return nil, err
	}

	if len(encoded) == 0 {
		return nil, nil
	}

	var token oauth2.Token
	err = json.Unmarshal(encoded, &token)
	if err != nil {
		return nil, err
	}

	return &token, nil
}

func (r *Redis) Save(ctx context.Context, account string, token *oauth2.Token) error {
	encoded, err := json.Marshal(token)
	if err != nil {
		return err
	}

	return r.client.Do(ctx, radix.FlatCmd(nil, "SET", redisKey(account), encoded, "EX", int(r.ttl.Seconds())))
}

func (r *Redis) Remove(ctx context.Context, account string) error {
	return r.client.Do(ctx, radix.Cmd(nil, "DEL", redisKey(account)))
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Do(ctx, radix.Cmd(nil, "PING"))
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func redisKey(account string) string {
	return redisKeyPrefix + normalizeAccount(account)
}
