// Package crawler implements the scraping pipeline for commission bulletin
// PDFs: crawl key enumeration, listing link extraction, filename inference,
// document classification and the engine that ties them to a downloader.
package crawler
