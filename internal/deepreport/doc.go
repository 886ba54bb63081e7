// Package deepreport generates the long-form report for one company from
// its research PDF and stores it on the investment. Reports are produced
// one at a time with the deep generation profile; there is no batching and
// no retry.
package deepreport
