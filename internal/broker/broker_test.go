package broker

import (
	"encoding/binary"
	"testing"

	"forge/internal/batch"
	"forge/internal/partitionlog"
	"forge/internal/protocol"
	"forge/internal/record"
	"forge/internal/resourcecache"
)

func testBroker(t *testing.T) *Broker {
	t.Helper()
	dir := t.TempDir()

	cfg := Config{
		ListenAddr: "127.0.0.1:0",
		BaseDir:    dir,
		Topic:      "events",
		Partition:  0,
		PartitionLog: partitionlog.Config{
			MaxSegmentSize: 1024 * 1024,
		},
		CacheCapacity: 4,
	}

	cache := resourcecache.New(cfg.CacheCapacity)
	t.Cleanup(func() { cache.Close() })

	b, err := NewBroker(cfg, cache, nil)
	if err != nil {
		t.Fatalf("NewBroker failed: %v", err)
	}
	return b
}

func encodeBatch(value string) []byte {
	rb := batch.RecordBatch{
		Magic:        batch.SupportedMagic,
		RecordsCount: 1,
		Records: []record.Record{
			{Key: []byte("k"), Value: []byte(value)},
		},
	}
	return batch.Encode(nil, rb)
}

func TestHandleProduceAssignsOffset(t *testing.T) {
	b := testBroker(t)

	req := &protocol.Request{
		Header: protocol.RequestHeader{ApiKey: protocol.ApiKeyProduce},
		Body:   encodeBatch("first"),
	}

	resp, err := b.handleRequest(req)
	if err != nil {
		t.Fatalf("handleRequest failed: %v", err)
	}
	if len(resp) != PRODUCE_RESPONSE_BODY_SIZE {
		t.Fatalf("resp len = %d, want %d", len(resp), PRODUCE_RESPONSE_BODY_SIZE)
	}
	offset := int64(binary.BigEndian.Uint64(resp))
	if offset != 0 {
		t.Errorf("offset = %d, want 0", offset)
	}
}

func TestHandleFetchReturnsEncodedBatches(t *testing.T) {
	b := testBroker(t)

	produceReq := &protocol.Request{
		Header: protocol.RequestHeader{ApiKey: protocol.ApiKeyProduce},
		Body:   encodeBatch("hello"),
	}
	if _, err := b.handleRequest(produceReq); err != nil {
		t.Fatalf("produce failed: %v", err)
	}

	fetchBody := make([]byte, FETCH_REQUEST_BODY_SIZE)
	binary.BigEndian.PutUint64(fetchBody[0:8], 0)
	binary.BigEndian.PutUint32(fetchBody[8:12], 4096)

	fetchReq := &protocol.Request{
		Header: protocol.RequestHeader{ApiKey: protocol.ApiKeyFetch},
		Body:   fetchBody,
	}

	resp, err := b.handleRequest(fetchReq)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	decoded, n, err := batch.Decode(resp)
	if err != nil {
		t.Fatalf("decode fetched batch failed: %v", err)
	}
	if n != len(resp) {
		t.Errorf("decoded %d bytes, expected to consume all %d", n, len(resp))
	}
	if len(decoded.Records) != 1 || string(decoded.Records[0].Value) != "hello" {
		t.Errorf("unexpected decoded record: %+v", decoded.Records)
	}
}

func TestHandleFetchPastEndReturnsEmpty(t *testing.T) {
	b := testBroker(t)

	fetchBody := make([]byte, FETCH_REQUEST_BODY_SIZE)
	binary.BigEndian.PutUint64(fetchBody[0:8], 0)
	binary.BigEndian.PutUint32(fetchBody[8:12], 4096)

	fetchReq := &protocol.Request{
		Header: protocol.RequestHeader{ApiKey: protocol.ApiKeyFetch},
		Body:   fetchBody,
	}

	resp, err := b.handleRequest(fetchReq)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("resp len = %d, want 0", len(resp))
	}
}
