package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFilesOrderedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_add_index.sql", "0001_init.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- ddl"), 0o644); err != nil {
			t.Fatalf("写入迁移文件失败: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.sql"), 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("读取迁移目录失败: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("应只收集 2 个 .sql 文件, 实际 %d", len(files))
	}
	if filepath.Base(files[0]) != "0001_init.sql" || filepath.Base(files[1]) != "0002_add_index.sql" {
		t.Fatalf("迁移文件应按字典序排列, 实际 %v", files)
	}
}

func TestMigrationFilesMissingDir(t *testing.T) {
	files, err := migrationFiles(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("缺失目录不应报错: %v", err)
	}
	if files != nil {
		t.Fatalf("缺失目录应返回空列表, 实际 %v", files)
	}
}
