package retention

import (
	"os"
	"testing"
	"time"

	"forge/internal/batch"
	"forge/internal/partitionlog"
	"forge/internal/record"
)

func createTestBatch(timestamp int64) []byte {
	b := batch.RecordBatch{
		Magic:         batch.SupportedMagic,
		BaseTimestamp: timestamp,
		MaxTimestamp:  timestamp,
		RecordsCount:  1,
		Records: []record.Record{
			{Key: []byte("k"), Value: []byte("some reasonably sized payload to force segment rolls")},
		},
	}
	return batch.Encode(nil, b)
}

func TestCleanerStartStop(t *testing.T) {
	rc := New(CleanerConfig{RetentionCheckIntervalMs: 50}, nil)
	rc.Start()
	time.Sleep(100 * time.Millisecond)
	rc.Stop()
}

func TestCleanerRegister(t *testing.T) {
	dir := t.TempDir()
	p, err := partitionlog.Open(dir, 150, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	rc := New(CleanerConfig{RetentionCheckIntervalMs: 50}, nil)
	rc.Register(p)

	if len(rc.partitions) != 1 {
		t.Errorf("expected 1 partition, got %d", len(rc.partitions))
	}
}

func TestCleanerIntegrationRetentionMs(t *testing.T) {
	dir := t.TempDir()
	p, err := partitionlog.Open(dir, 150, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	oldTimestamp := time.Now().UnixMilli() - 500
	for i := 0; i < 3; i++ {
		if _, err := p.Append(createTestBatch(oldTimestamp)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.Append(createTestBatch(time.Now().UnixMilli())); err != nil {
		t.Fatal(err)
	}

	segmentsBefore := p.SegmentCount()
	if segmentsBefore <= 1 {
		t.Skip("not enough segments rolled for this test")
	}

	rc := New(CleanerConfig{RetentionCheckIntervalMs: 50}, nil)
	rc.Register(p)
	rc.Start()

	time.Sleep(150 * time.Millisecond)
	rc.Stop()

	segmentsAfter := p.SegmentCount()
	if segmentsAfter >= segmentsBefore {
		t.Errorf("expected segments to be deleted: before=%d, after=%d", segmentsBefore, segmentsAfter)
	}
}

func TestCleanerIntegrationRetentionBytes(t *testing.T) {
	dir := t.TempDir()
	p, err := partitionlog.Open(dir, 150, 200, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ts := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		if _, err := p.Append(createTestBatch(ts)); err != nil {
			t.Fatal(err)
		}
	}

	segmentsBefore := p.SegmentCount()
	if segmentsBefore <= 1 {
		t.Skip("not enough segments for this test")
	}

	filesBefore, _ := os.ReadDir(dir)
	countBefore := len(filesBefore)

	rc := New(CleanerConfig{RetentionCheckIntervalMs: 50}, nil)
	rc.Register(p)
	rc.Start()

	time.Sleep(150 * time.Millisecond)
	rc.Stop()

	segmentsAfter := p.SegmentCount()
	filesAfter, _ := os.ReadDir(dir)
	countAfter := len(filesAfter)

	if segmentsAfter >= segmentsBefore {
		t.Errorf("expected segments to be deleted: before=%d, after=%d", segmentsBefore, segmentsAfter)
	}
	if countAfter >= countBefore {
		t.Errorf("expected files to be deleted: before=%d, after=%d", countBefore, countAfter)
	}
}

func TestCleanerIntegrationNoDeleteWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	p, err := partitionlog.Open(dir, 150, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ts := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		if _, err := p.Append(createTestBatch(ts)); err != nil {
			t.Fatal(err)
		}
	}

	segmentsBefore := p.SegmentCount()
	if segmentsBefore <= 1 {
		t.Skip("not enough segments for this test")
	}

	rc := New(CleanerConfig{RetentionCheckIntervalMs: 50}, nil)
	rc.Register(p)
	rc.Start()

	time.Sleep(150 * time.Millisecond)
	rc.Stop()

	segmentsAfter := p.SegmentCount()
	if segmentsAfter != segmentsBefore {
		t.Errorf("expected no segments deleted when retention disabled: before=%d, after=%d", segmentsBefore, segmentsAfter)
	}
}
