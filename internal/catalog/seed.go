package catalog

import (
	"context"
	"fmt"

	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultCategoryID   int64 = 1
	defaultCategoryName       = "Costumes"
	seedQuantity              = 10
)

type seedCostume struct {
	id          int64
	name        string
	description string
	size        string
	price       string
	image       string
}

var seedCostumes = []seedCostume{
	{1, "Notte (Bleu Roi)", "Une élégance royale pour vos soirées les plus prestigieuses.", "M", "450.00",
		"https://amen-bespoke.com/wp-content/uploads/2025/07/20250702_0009_Homme-en-Costume-Elegant_remix_01jz43xe9te1zsvggxvd49ce3e.png"},
	{2, "Noir Éternel", "Le classique intemporel. Une coupe parfaite.", "L", "500.00",
		"https://amen-bespoke.com/wp-content/uploads/2025/07/20250702_0101_Costume-Elegant-et-Moderne_remix_01jz46x95fef5vhd34cgb7vn1s.png"},
	{3, "Midnight Pinstripes", "L'audace des rayures fines sur un fond sombre.", "L", "550.00",
		"https://amen-bespoke.com/wp-content/uploads/2025/07/20250702_0117_Homme-en-Costume-Elegant_remix_01jz47tp3rfpd9ea1rj7s47zna.png"},
	{4, "Bordeaux Majestic", "Osez la couleur avec ce bordeaux profond.", "M", "600.00",
		"https://amen-bespoke.com/wp-content/uploads/2025/07/20250702_2144_Modele-en-Costume-Classique_remix_01jz6e04x2fz1tcw017rmec251.png"},
	{5, "Gris Manhattan", "Le chic urbain par excellence.", "XL", "650.00",
		"https://amen-bespoke.com/wp-content/uploads/2025/07/20250702_0241_Homme-en-Costume-Bleu_remix_01jz4ckh07e7mt37s684jvw0zt.png"},
	{6, "Brun Toscane", "Chaleur et distinction.", "L", "550.00",
		"https://amen-bespoke.com/wp-content/uploads/2025/07/20250702_1539_Homme-en-costume-elegant_remix_01jz5s3v42ez3vtgbjpdagv744.png"},
	{7, "Prince de Galles", "Le motif iconique pour une allure british.", "M", "700.00",
		"https://amen-bespoke.com/wp-content/uploads/2025/07/20250702_2358_Modele-en-Costume-Elegant_remix_01jz6npvjyecxtwztb18fwgg8p.png"},
	{8, "Smoking Blanc", "L'apogée du luxe pour vos mariages.", "M", "800.00",
		"https://wp-media-dejiandkola.s3.eu-west-2.amazonaws.com/2020/09/120089573_3780074748688104_995916302928762415_n.jpg"},
}

// Seed inserts the default category and the launch collection. Rows that
// already exist are left untouched, so Seed can run on every deploy.
func Seed(ctx context.Context, db *gorm.DB) (int, error) {
	inserted := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category := models.Category{ID: defaultCategoryID, Name: defaultCategoryName}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&category).Error; err != nil {
			return fmt.Errorf("seed category: %w", err)
		}

		for _, sc := range seedCostumes {
			image := sc.image
			categoryID := defaultCategoryID
			costume := models.Costume{
				ID:          sc.id,
				Name:        sc.name,
				Description: sc.description,
				Size:        sc.size,
				Price:       decimal.RequireFromString(sc.price),
				ImagePath:   &image,
				IsAvailable: true,
				Quantity:    seedQuantity,
				CategoryID:  &categoryID,
			}
			res := tx.Omit("Category", "Rentals").Clauses(clause.OnConflict{DoNothing: true}).Create(&costume)
			if res.Error != nil {
				return fmt.Errorf("seed costume %d: %w", sc.id, res.Error)
			}
			inserted += int(res.RowsAffected)
		}

		if tx.Dialector.Name() == "postgres" {
			for _, table := range []string{"categories", "costumes"} {
				stmt := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), (SELECT MAX(id) FROM %s))", table, table)
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("reset %s sequence: %w", table, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
