package initial

import (
	"context"
	"fmt"
	"strings"

	"NewsPulse/internal/config"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
)

// NewMilvusClient 连接 Milvus，目标数据库不存在时先创建
func NewMilvusClient(ctx context.Context, conf *config.Config) (mclient.Client, error) {
	mc := conf.VectorConfig.Milvus
	addr := strings.TrimSpace(mc.Address)
	if addr == "" {
		return nil, fmt.Errorf("milvus address is empty")
	}
	dbName := strings.TrimSpace(mc.DBName)
	if dbName == "" {
		dbName = "default"
	}

	newClient := func(db string) (mclient.Client, error) {
		return mclient.NewClient(ctx, mclient.Config{
			Address:  addr,
			Username: strings.TrimSpace(mc.Username),
			Password: strings.TrimSpace(mc.Password),
			DBName:   db,
		})
	}

	if dbName == "default" {
		return newClient(dbName)
	}

	defaultCli, err := newClient("default")
	if err != nil {
		return nil, err
	}
	defer defaultCli.Close()

	if err := ensureDatabase(ctx, defaultCli, dbName); err != nil {
		return nil, err
	}
	return newClient(dbName)
}

func ensureDatabase(ctx context.Context, cli mclient.Client, dbName string) error {
	dbs, err := cli.ListDatabases(ctx)
	if err != nil {
		return err
	}
	for _, db := range dbs {
		if db.Name == dbName {
			return nil
		}
	}
	return cli.CreateDatabase(ctx, dbName)
}
