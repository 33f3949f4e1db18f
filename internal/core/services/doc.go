// Package services holds the pdfkb core: text extraction across tiers,
// the vector store facade, folder ingestion, retrieval and settings.
//
// Services depend only on domain, the ports and the logger.
package services
