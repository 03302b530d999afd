// Package chatbot answers free text from a trained statement corpus.
//
// Training ([Trainer]) turns corpus conversations into statements, each
// recording the utterance it responds to, and writes them to a
// [storage.StatementStore]. A [Bot] is then built once from the stored
// statements. Its index is immutable, so a single Bot is shared by all
// request goroutines without locking.
//
// Matching follows the usual corpus-bot approach: find the known input
// closest to the query by Levenshtein similarity and return the most
// frequent response recorded for it. Unmatched input falls back to a
// configured default response, so a reply is always produced.
package chatbot
