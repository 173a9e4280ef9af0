package main

import (
	"compress/gzip"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Sample discount batches for local runs. Lines follow
// code,type,value[,oneTimeUse[,maxGlobalUses]]. WELCOME10 appears in both
// files; the later file wins on import, so its definition is 15%.
var batches = map[string][]string{
	"spring.csv.gz": {
		"code,type,value,oneTimeUse,maxGlobalUses",
		"WELCOME10,percent,10,true",
		"SPRING25,percent,25,,500",
		"FIXED500,fixed,500",
		"LASTONE,fixed,1000,,1",
	},
	"vip.csv.gz": {
		"# loyal customers",
		"WELCOME10,percent,15,true",
		"VIP20,percent,20,true,100",
		"SHIPFREE,fixed,495",
	},
}

func main() {
	dataDir := flag.String("dir", "data/discounts", "directory the batches are written to")
	flag.Parse()

	// Create directory if it doesn't exist
	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	for filename, lines := range batches {
		filePath := filepath.Join(*dataDir, filename)

		if err := writeBatch(filePath, lines); err != nil {
			log.Fatalf("Failed to create %s: %v", filename, err)
		}

		fmt.Printf("Created %s with %d lines\n", filePath, len(lines))
	}

	fmt.Println("\nImport them with:")
	fmt.Println(`  POST /api/admin/discounts/import {"files":["spring.csv.gz","vip.csv.gz"]}`)
}

func writeBatch(filePath string, lines []string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintf(gzipWriter, "%s\n", line); err != nil {
			return fmt.Errorf("failed to write line: %w", err)
		}
	}

	return nil
}
