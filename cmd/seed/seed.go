// Package seed implements the seed command, filling the database with a
// random but structurally valid corpus for development and load testing.
package seed

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/printprob/bookdb/internal/conf"
	"github.com/printprob/bookdb/internal/datastore"
	"github.com/printprob/bookdb/internal/iiif"
	"github.com/printprob/bookdb/internal/logging"
)

var words = []string{
	"discourse", "treatise", "history", "account", "relation", "sermon",
	"tragedie", "comedie", "poems", "letters", "voyage", "description",
	"kingdom", "nature", "philosophy", "physick", "law", "parliament",
	"church", "plague", "london", "england", "seas", "stars", "herbs",
}

// Command creates the seed command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		nBooks       int
		linesPerPage int
		charsPerLine int
		wipe         bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with a random corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(settings, nBooks, linesPerPage, charsPerLine, wipe)
		},
	}

	cmd.Flags().IntVar(&nBooks, "books", 5, "Number of books to generate")
	cmd.Flags().IntVar(&linesPerPage, "lines", 35, "Lines per page")
	cmd.Flags().IntVar(&charsPerLine, "characters", 60, "Characters per line")
	cmd.Flags().BoolVar(&wipe, "wipe", false, "Delete existing books first")

	return cmd
}

func runSeed(settings *conf.Settings, nBooks, linesPerPage, charsPerLine int, wipe bool) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() { _ = store.Close() }()

	if wipe {
		logging.Info("Wiping existing books")
		if err := wipeBooks(store); err != nil {
			return err
		}
	}

	classes, err := ensureClasses(store)
	if err != nil {
		return err
	}

	logging.Info("Generating books", "count", nBooks)
	for i := 0; i < nBooks; i++ {
		if err := seedBook(store, classes, linesPerPage, charsPerLine); err != nil {
			return err
		}
	}

	logging.Info("Seeding complete")
	return nil
}

func wipeBooks(store datastore.Interface) error {
	for {
		ignored := true
		books, _, err := store.ListBooks(datastore.BookFilter{Limit: 100})
		if err != nil {
			return err
		}
		hidden, _, err := store.ListBooks(datastore.BookFilter{Ignored: &ignored, Limit: 100})
		if err != nil {
			return err
		}
		books = append(books, hidden...)
		if len(books) == 0 {
			return nil
		}
		for i := range books {
			if err := store.DeleteBook(books[i].ID); err != nil {
				return err
			}
		}
	}
}

// ensureClasses creates one class per ASCII letter, mirroring the classifier's
// default taxonomy.
func ensureClasses(store datastore.Interface) ([]string, error) {
	var classnames []string
	for ch := 'a'; ch <= 'z'; ch++ {
		lower := string(ch)
		upper := strings.ToUpper(lower)

		if _, err := store.GetCharacterClass(lower); err != nil {
			class := &datastore.CharacterClass{Classname: lower, Label: lower, Group: datastore.GroupLowercase}
			if err := store.CreateCharacterClass(class); err != nil {
				return nil, err
			}
		}
		if _, err := store.GetCharacterClass(upper); err != nil {
			class := &datastore.CharacterClass{Classname: upper, Label: upper, Group: datastore.GroupUppercase}
			if err := store.CreateCharacterClass(class); err != nil {
				return nil, err
			}
		}
		classnames = append(classnames, lower, upper)
	}
	return classnames, nil
}

func seedBook(store datastore.Interface, classes []string, linesPerPage, charsPerLine int) error {
	eebo := uint(rand.Intn(500000))
	vid := uint(rand.Intn(500000))
	book := &datastore.Book{
		EEBO:        &eebo,
		VID:         &vid,
		PQTitle:     sentence(8),
		PQAuthor:    sentence(3),
		PQPublisher: sentence(4),
	}
	if err := store.CreateBook(book); err != nil {
		return err
	}

	nSpreads := 4 + rand.Intn(26)
	for i := 0; i < nSpreads; i++ {
		spread := &datastore.Spread{
			BookID:   book.ID,
			Sequence: uint(i),
			Image:    randomImage(),
		}
		if err := store.CreateSpread(spread); err != nil {
			return err
		}
	}

	pageRun := &datastore.PageRun{BookID: book.ID, Params: params(), ScriptPath: scriptPath()}
	if err := store.CreatePageRun(pageRun); err != nil {
		return err
	}
	lineRun := &datastore.LineRun{BookID: book.ID, Params: params(), ScriptPath: scriptPath()}
	if err := store.CreateLineRun(lineRun); err != nil {
		return err
	}
	charRun := &datastore.CharacterRun{BookID: book.ID, Params: params(), ScriptPath: scriptPath()}
	if err := store.CreateCharacterRun(charRun); err != nil {
		return err
	}

	for i := 0; i < nSpreads; i++ {
		for _, side := range []string{datastore.SideLeft, datastore.SideRight} {
			page := &datastore.Page{
				CreatedByRunID: pageRun.ID,
				Sequence:       uint(i),
				Side:           side,
				Image:          randomImage(),
			}
			if err := store.CreatePage(page); err != nil {
				return err
			}

			for l := 0; l < linesPerPage; l++ {
				yMin := l * 40
				line := &datastore.Line{
					CreatedByRunID: lineRun.ID,
					PageID:         page.ID,
					Sequence:       uint(l),
					YMin:           yMin,
					YMax:           yMin + 20 + rand.Intn(20),
				}
				if err := store.CreateLine(line); err != nil {
					return err
				}

				for ch := 0; ch < charsPerLine; ch++ {
					xMin := ch * 25
					char := &datastore.Character{
						CreatedByRunID:   charRun.ID,
						LineID:           line.ID,
						Sequence:         uint(ch),
						XMin:             xMin,
						XMax:             xMin + 5 + rand.Intn(20),
						CharacterClassID: classes[rand.Intn(len(classes))],
						ClassProbability: rand.Float64(),
					}
					if err := store.CreateCharacter(char); err != nil {
						return err
					}
				}
			}
		}
	}

	logging.Info("Seeded book", "book_id", book.ID, "label", book.Label, "spreads", nSpreads)
	return nil
}

func sentence(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words[rand.Intn(len(words))]
	}
	return strings.Join(parts, " ")
}

func params() string {
	return fmt.Sprintf("v%d.%d.%d", rand.Intn(4), rand.Intn(10), rand.Intn(10))
}

func scriptPath() string {
	return fmt.Sprintf("/ocean/projects/pipeline/%s/segment.py", words[rand.Intn(len(words))])
}

func randomImage() iiif.Image {
	return iiif.Image{
		Tif: fmt.Sprintf("scans/%s/%06d.tif", words[rand.Intn(len(words))], rand.Intn(999999)),
	}
}
