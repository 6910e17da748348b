package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"NewsPulse/internal/modules/news/domain/news"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	milvusVectorField = "vector"
	milvusTextMaxLen  = "65535"

	defaultMilvusDialTimeout = 5 * time.Second
)

var errMilvusClosed = errors.New("milvus backend closed")

// MilvusDialer 建立到 Milvus 的连接，ctx 带有连接超时
type MilvusDialer func(ctx context.Context) (mclient.Client, error)

var milvusOutputFields = []string{"seq", "text", "title", "link", "pub_date", "source"}

// MilvusBackend 基于 milvus-sdk-go 的后端，使用 AUTOINDEX + COSINE。
//
// 连接在第一次使用时建立，失败的连接不缓存，下一次调用会重新拨号。
type MilvusBackend struct {
	dial        MilvusDialer
	dialTimeout time.Duration

	mu     sync.Mutex
	cli    mclient.Client
	closed bool

	seq atomic.Int64
}

var _ Backend = (*MilvusBackend)(nil)

// NewMilvusBackend 使用已建立的连接
func NewMilvusBackend(cli mclient.Client) (*MilvusBackend, error) {
	if cli == nil {
		return nil, errors.New("milvus client is nil")
	}
	b := &MilvusBackend{cli: cli}
	b.seq.Store(time.Now().UnixNano())
	return b, nil
}

// NewLazyMilvusBackend 不立即连接；dialTimeout <= 0 时使用 5s
func NewLazyMilvusBackend(dial MilvusDialer, dialTimeout time.Duration) (*MilvusBackend, error) {
	if dial == nil {
		return nil, errors.New("milvus dialer is nil")
	}
	if dialTimeout <= 0 {
		dialTimeout = defaultMilvusDialTimeout
	}
	b := &MilvusBackend{dial: dial, dialTimeout: dialTimeout}
	b.seq.Store(time.Now().UnixNano())
	return b, nil
}

func (b *MilvusBackend) client(ctx context.Context) (mclient.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errMilvusClosed
	}
	if b.cli != nil {
		return b.cli, nil
	}

	dctx, cancel := context.WithTimeout(ctx, b.dialTimeout)
	defer cancel()
	cli, err := b.dial(dctx)
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	if cli == nil {
		return nil, errors.New("connect milvus: dialer returned nil client")
	}
	b.cli = cli
	return cli, nil
}

func (b *MilvusBackend) Describe(ctx context.Context, collection string) (bool, int, error) {
	cli, err := b.client(ctx)
	if err != nil {
		return false, 0, err
	}
	ok, err := cli.HasCollection(ctx, collection)
	if err != nil || !ok {
		return false, 0, err
	}
	coll, err := cli.DescribeCollection(ctx, collection)
	if err != nil {
		return false, 0, err
	}
	if coll == nil || coll.Schema == nil {
		return false, 0, fmt.Errorf("collection %s has no schema", collection)
	}
	for _, f := range coll.Schema.Fields {
		if f != nil && f.DataType == entity.FieldTypeFloatVector {
			dim, err := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
			if err != nil {
				return false, 0, fmt.Errorf("parse dim of %s: %w", collection, err)
			}
			// 已有集合可能缺索引或未加载（上次建表中途失败、服务重启）
			if err := prepareCollection(ctx, cli, collection); err != nil {
				return false, 0, err
			}
			return true, dim, nil
		}
	}
	return false, 0, fmt.Errorf("collection %s has no vector field", collection)
}

func (b *MilvusBackend) Create(ctx context.Context, collection string, dim int) error {
	cli, err := b.client(ctx)
	if err != nil {
		return err
	}
	ok, err := cli.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if ok {
		return ErrCollectionExists
	}

	schema := &entity.Schema{
		CollectionName: collection,
		Description:    "NewsPulse article embeddings",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       milvusVectorField,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{entity.TypeParamDim: strconv.Itoa(dim)},
			},
			{Name: "seq", DataType: entity.FieldTypeInt64},
			{Name: "text", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": milvusTextMaxLen}},
			{Name: "title", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "1024"}},
			{Name: "link", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "2048"}},
			{Name: "pub_date", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "64"}},
			{Name: "source", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "256"}},
		},
	}
	if err := cli.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return err
	}

	if err := prepareCollection(ctx, cli, collection); err != nil {
		// 建索引或加载失败时删掉半成品，下次写入重新建表
		if derr := cli.DropCollection(context.WithoutCancel(ctx), collection); derr != nil {
			return errors.Join(err, fmt.Errorf("drop partial collection %s: %w", collection, derr))
		}
		return err
	}
	return nil
}

// prepareCollection 确保向量字段有 COSINE 索引并加载集合
func prepareCollection(ctx context.Context, cli mclient.Client, collection string) error {
	indexes, err := cli.DescribeIndex(ctx, collection, milvusVectorField)
	if err != nil || len(indexes) == 0 {
		idx, ierr := entity.NewIndexAUTOINDEX(entity.COSINE)
		if ierr != nil {
			return ierr
		}
		if ierr := cli.CreateIndex(ctx, collection, milvusVectorField, idx, false); ierr != nil {
			return fmt.Errorf("create index on %s: %w", collection, ierr)
		}
	}
	if err := cli.LoadCollection(ctx, collection, false); err != nil {
		return fmt.Errorf("load collection %s: %w", collection, err)
	}
	return nil
}

func (b *MilvusBackend) Insert(ctx context.Context, collection string, docs []news.Document) error {
	if len(docs) == 0 {
		return nil
	}
	dim := len(docs[0].Vector)
	ids := make([]string, 0, len(docs))
	vectors := make([][]float32, 0, len(docs))
	seqs := make([]int64, 0, len(docs))
	texts := make([]string, 0, len(docs))
	titles := make([]string, 0, len(docs))
	links := make([]string, 0, len(docs))
	pubDates := make([]string, 0, len(docs))
	sources := make([]string, 0, len(docs))

	for _, d := range docs {
		ids = append(ids, d.ID)
		vectors = append(vectors, d.Vector)
		seqs = append(seqs, b.seq.Add(1))
		texts = append(texts, d.Text)
		titles = append(titles, d.Metadata.Title)
		links = append(links, d.Metadata.Link)
		pubDates = append(pubDates, d.Metadata.PublishedAt)
		sources = append(sources, d.Metadata.Source)
	}

	cli, err := b.client(ctx)
	if err != nil {
		return err
	}
	_, err = cli.Insert(
		ctx,
		collection,
		"",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(milvusVectorField, dim, vectors),
		entity.NewColumnInt64("seq", seqs),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("link", links),
		entity.NewColumnVarChar("pub_date", pubDates),
		entity.NewColumnVarChar("source", sources),
	)
	if err != nil {
		return err
	}
	// flush 之后 Count 与 Search 才能看到新数据
	return cli.Flush(ctx, collection, false)
}

func (b *MilvusBackend) Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error) {
	cli, err := b.client(ctx)
	if err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	res, err := cli.Search(
		ctx,
		collection,
		nil,
		"",
		milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		milvusVectorField,
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return []Hit{}, nil
	}
	return parseMilvusResult(res[0])
}

// parseMilvusResult COSINE 下 Milvus 返回的是相似度，这里换算为距离
func parseMilvusResult(sr mclient.SearchResult) ([]Hit, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}
	hits := make([]Hit, 0, sr.ResultCount)

	seqCol := columnByName(sr.Fields, "seq")
	textCol := columnByName(sr.Fields, "text")
	titleCol := columnByName(sr.Fields, "title")
	linkCol := columnByName(sr.Fields, "link")
	pubDateCol := columnByName(sr.Fields, "pub_date")
	sourceCol := columnByName(sr.Fields, "source")

	for i := 0; i < sr.ResultCount; i++ {
		var h Hit
		if sr.IDs != nil {
			h.Doc.ID, _ = sr.IDs.GetAsString(i)
		}
		if i < len(sr.Scores) {
			h.Distance = 1 - float64(sr.Scores[i])
		} else {
			h.Distance = 1
		}
		if seqCol != nil {
			h.Seq, _ = seqCol.GetAsInt64(i)
		}
		h.Doc.Text = stringAt(textCol, i)
		h.Doc.Metadata = news.Metadata{
			Title:       stringAt(titleCol, i),
			Link:        stringAt(linkCol, i),
			PublishedAt: stringAt(pubDateCol, i),
			Source:      stringAt(sourceCol, i),
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func (b *MilvusBackend) Drop(ctx context.Context, collection string) error {
	cli, err := b.client(ctx)
	if err != nil {
		return err
	}
	ok, err := cli.HasCollection(ctx, collection)
	if err != nil || !ok {
		return err
	}
	return cli.DropCollection(ctx, collection)
}

func (b *MilvusBackend) Count(ctx context.Context, collection string) (int64, error) {
	cli, err := b.client(ctx)
	if err != nil {
		return 0, err
	}
	stats, err := cli.GetCollectionStatistics(ctx, collection)
	if err != nil {
		return 0, err
	}
	raw, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (b *MilvusBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.cli == nil {
		return nil
	}
	err := b.cli.Close()
	b.cli = nil
	return err
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

func stringAt(col entity.Column, i int) string {
	if col == nil {
		return ""
	}
	v, _ := col.GetAsString(i)
	return v
}
