// Package common holds collaborators shared by the ledger packages that carry no
// ledger rules of their own, such as the random identifier source.
package common
